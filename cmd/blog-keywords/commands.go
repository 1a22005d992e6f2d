package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/edgecomet/blogkeywords/internal/common/configtypes"
	"github.com/edgecomet/blogkeywords/internal/common/metricsserver"
	"github.com/edgecomet/blogkeywords/internal/pipeline"
	"github.com/edgecomet/blogkeywords/internal/service"
	"github.com/edgecomet/blogkeywords/internal/workspace"
)

func createRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <url>",
		Short: "Fetch a blog and print the extracted keywords",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, analyzerRequired)
			if err != nil {
				return err
			}
			defer a.close()

			snapshot, err := a.session.Fetch(ctx, args[0])
			if err != nil {
				return err
			}
			printArticles(cmd.ErrOrStderr(), snapshot)

			keywords, err := a.session.Analyze(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), keywords)
			return nil
		},
	}
}

func createFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <url>",
		Short: "Save a blog's main page and articles as documents without analyzing them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, analyzerNone)
			if err != nil {
				return err
			}
			defer a.close()

			snapshot, err := a.session.Fetch(ctx, args[0])
			if err != nil {
				return err
			}
			printArticles(cmd.OutOrStdout(), snapshot)
			return printDocuments(cmd.OutOrStdout(), a.ws)
		},
	}
}

func createServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session over a JSON HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, analyzerOptional)
			if err != nil {
				return err
			}
			defer a.close()
			log := a.logger.Logger

			if listen == "" {
				listen = a.cfg.Server.Listen
			}
			listen, err = configtypes.NormalizeListen(listen)
			if err != nil {
				return fmt.Errorf("invalid listen address: %w", err)
			}

			metricsServer, err := metricsserver.Start(a.cfg.Metrics, a.metrics, log)
			if err != nil {
				return err
			}

			api := service.New(a.session, a.metrics, log)
			if _, err := api.Start(listen); err != nil {
				return err
			}

			<-ctx.Done()

			a.logger.EnsureInfoLevelForShutdown()
			log.Info("Shutdown signal received, stopping servers")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := api.Shutdown(shutdownCtx); err != nil {
				log.Error("Error shutting down API server", zap.Error(err))
			}
			if metricsServer != nil {
				if err := metricsServer.ShutdownWithContext(shutdownCtx); err != nil {
					log.Error("Error shutting down metrics server", zap.Error(err))
				}
			}

			log.Info("Shutdown complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "API listen address (overrides server.listen)")
	return cmd
}

func printArticles(w io.Writer, snapshot *pipeline.Snapshot) {
	if len(snapshot.Articles) == 0 {
		fmt.Fprintln(w, "No article links found. Only the main page will be analyzed.")
		return
	}

	fmt.Fprintf(w, "Main page + %d articles:\n", len(snapshot.Articles))
	for _, article := range snapshot.Articles {
		mark := "x"
		if !article.Selected {
			mark = " "
		}
		line := fmt.Sprintf("  [%s] %2d. %s  %s", mark, article.Index, article.Title, article.URL)
		if article.Error != "" {
			line += "  (" + article.Error + ")"
		}
		fmt.Fprintln(w, line)
	}
}

// printDocuments lists what the workspace holds after a fetch
func printDocuments(w io.Writer, ws *workspace.Workspace) error {
	files, err := ws.List()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Documents saved in %s:\n", ws.Dir())
	for _, file := range files {
		fmt.Fprintf(w, "  %s\n", filepath.Base(file))
	}
	return nil
}
