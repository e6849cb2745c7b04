package main

import (
	"context"
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/danielpatrickdp/reimburse-harness/internal/cases"
	"github.com/danielpatrickdp/reimburse-harness/internal/model"
)

// #region serve-model
func newServeModelCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve-model",
		Short: "Serve a ridge fit over the dataset as a remote regressor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cases.Load(a.cfg.Dataset)
			if err != nil {
				return err
			}
			fit, err := model.FitStore(store, a.cfg.Model.RidgeLambda)
			if err != nil {
				return fmt.Errorf("fit: %w", err)
			}
			lis, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("listen %s: %w", listen, err)
			}
			a.logger.Info("serving regressor", "addr", lis.Addr().String(), "cases", store.Len(), "lambda", a.cfg.Model.RidgeLambda)
			return serveModel(cmd.Context(), lis, fit)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "localhost:50051", "address to listen on")
	return cmd
}

// serveModel serves reg on lis until ctx is done, then drains in-flight calls.
func serveModel(ctx context.Context, lis net.Listener, reg *model.LeastSquares) error {
	srv := grpc.NewServer()
	model.RegisterRegressorServer(srv, reg)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(lis) }()
	select {
	case <-ctx.Done():
		srv.GracefulStop()
		<-done
		return nil
	case err := <-done:
		return err
	}
}

// #endregion serve-model
