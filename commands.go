package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"mip-lab/internal/config"
	"mip-lab/internal/db"
	"mip-lab/internal/logger"
	"mip-lab/internal/mip"
	"mip-lab/internal/router"
	"mip-lab/internal/service"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type app struct {
	cfgPath string
	cfg     *config.Config
	logger  zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "mip-lab",
		Short:         "MIP 求解实验：warm start / LNS 对比实验的作业编排与结果分析",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(a.cfgPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger.Configure(cfg.Log.Level)
			cmd.SetContext(a.logger.WithContext(cmd.Context()))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "config/config.yaml", "配置文件路径")

	root.AddCommand(
		a.syncdbCmd(),
		a.seedCmd(),
		a.solveCmd(),
		a.selectCmd(),
		a.bestObjCmd(),
		a.primalGapCmd(),
		a.exportMetricsCmd(),
		a.serveCmd(),
	)
	return root
}

// services 打开数据库并构造进程级依赖。求解环境只在这里创建一次
func (a *app) services() (*service.ServiceContext, error) {
	store, err := db.InitDB(a.cfg.Database)
	if err != nil {
		return nil, err
	}
	env := mip.NewEnv(mip.WithLogger(a.logger))
	return service.NewServiceContext(a.cfg, store, env), nil
}

func (a *app) syncdbCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "syncdb",
		Short: "同步数据库表结构",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := db.InitDB(a.cfg.Database)
			return err
		},
	}
}

func (a *app) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "扫描实例目录并登记实例",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.services()
			if err != nil {
				return err
			}
			instances, err := service.SeedInstances(cmd.Context(), svc.Env, svc.Store, a.cfg.Solver.InstancesDir)
			if err != nil {
				// 部分文件失败时已登记的实例仍然有效
				a.logger.Warn().Err(err).Int("instances", len(instances)).Msg("部分实例登记失败")
			}
			return nil
		},
	}
}

func (a *app) solveCmd() *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:     "solve",
		Aliases: []string{"solveall"},
		Short:   "按实验组顺序求解全部作业（grb_only / warm_start / lns / selected）",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.services()
			if err != nil {
				return err
			}
			result, err := svc.BatchRunner.Run(cmd.Context(), service.BatchRequest{Group: group})
			if err != nil {
				return err
			}
			if result.JobErrors != nil {
				if merr, ok := result.JobErrors.(*multierror.Error); ok {
					a.logger.Warn().Int("failed", len(merr.Errors)).Msg("部分作业失败，详见报告")
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "batch %s: %d/%d 成功，报告 %s\n", result.UUID, result.Succeeded, result.Planned, result.ReportPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&group, "group", service.GroupGRBOnly, "实验组")
	return cmd
}

func (a *app) selectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select",
		Short: "按 grb_only 结果筛选实验实例",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.services()
			if err != nil {
				return err
			}
			_, err = service.SelectInstances(cmd.Context(), svc.Store, a.cfg.Experiment.Selection)
			return err
		},
	}
}

func (a *app) bestObjCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bestobj",
		Short: "更新每个实例的最好目标值",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.services()
			if err != nil {
				return err
			}
			_, err = service.UpdateBestKnownObjVals(cmd.Context(), svc.Store)
			return err
		},
	}
}

func (a *app) primalGapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "primalgap",
		Short: "计算所有有解结果的 primal gap",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.services()
			if err != nil {
				return err
			}
			_, err = service.UpdatePrimalGaps(cmd.Context(), svc.Store)
			return err
		},
	}
}

func (a *app) exportMetricsCmd() *cobra.Command {
	var (
		jobID uint
		out   string
	)
	cmd := &cobra.Command{
		Use:   "export-metrics",
		Short: "导出作业的回调指标 CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.services()
			if err != nil {
				return err
			}
			return exportMetrics(cmd.Context(), svc.Store, jobID, out, cmd.OutOrStdout())
		},
	}
	cmd.Flags().UintVar(&jobID, "job", 0, "作业 ID")
	cmd.Flags().StringVar(&out, "out", "", "输出文件，默认标准输出")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func exportMetrics(ctx context.Context, store *db.Store, jobID uint, out string, stdout io.Writer) error {
	w := stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("创建输出文件失败: %w", err)
		}
		defer f.Close()
		w = f
	}
	_, err := service.ExportMetricsCSV(ctx, store, jobID, w)
	return err
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 查询接口",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.services()
			if err != nil {
				return err
			}
			r := router.SetupRouter(svc)
			addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
			a.logger.Info().Str("addr", addr).Msg("服务启动")
			return r.Run(addr)
		},
	}
}
