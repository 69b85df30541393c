package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xxxkjing/ClassComp-Score/internal/dto"
	"github.com/xxxkjing/ClassComp-Score/internal/service"
	"github.com/xxxkjing/ClassComp-Score/pkg/clock"
)

// errContinuity verify 发现问题时以非零状态退出
var errContinuity = errors.New("周期连续性校验未通过")

func periodCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "period",
		Short: "评分周期",
	}
	cmd.PersistentFlags().String("semester", "", "学期 ID（缺省为活动学期）")

	cmd.AddCommand(periodResolveCommand())
	cmd.AddCommand(periodListCommand())
	cmd.AddCommand(periodChangeTypeCommand())
	cmd.AddCommand(periodBackfillCommand())
	cmd.AddCommand(periodVerifyCommand())
	return cmd
}

func semesterFlag(cmd *cobra.Command) string {
	v, _ := cmd.Flags().GetString("semester")
	return v
}

// ── resolve ──

func periodResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [date]",
		Short: "查询日期所属周期（必要时物化）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd.Context())
			svc, err := a.service()
			if err != nil {
				return err
			}

			var date string
			if len(args) == 1 {
				date = args[0]
			}

			info, err := svc.Period.GetPeriodInfo(cmd.Context(), semesterFlag(cmd), date)
			if errors.Is(err, service.ErrSemesterNotFound) && semesterFlag(cmd) == "" {
				// 尚未配置学期：按当年 1 月 1 日起的旧版默认边界估算
				info, err = legacyInfo(a.clock, date)
			}
			if err != nil {
				return err
			}

			if globalFlags.jsonOutput {
				return printJSON(cmd.OutOrStdout(), info)
			}
			note := ""
			if info.Estimated {
				note = "（估算）"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s ~ %s %s%s\n",
				info.DisplayName, info.PeriodStart, info.PeriodEnd, info.PeriodType, note)
			return nil
		},
	}
}

func legacyInfo(clk clock.Clock, date string) (*dto.PeriodInfoResponse, error) {
	target := clk.Today()
	if date != "" {
		d, err := clock.ParseDate(date)
		if err != nil {
			return nil, service.ErrInvalidDate
		}
		target = d
	}
	start, firstEnd := service.LegacyDefaultBounds(target)
	p := service.CalculateLegacy(target, start, firstEnd).Period("")
	return &dto.PeriodInfoResponse{
		PeriodNumber: p.PeriodNumber,
		PeriodType:   string(p.PeriodType),
		PeriodStart:  clock.FormatDate(p.StartDate),
		PeriodEnd:    clock.FormatDate(p.EndDate),
		DisplayName:  service.DisplayName(p),
		Estimated:    true,
	}, nil
}

// ── list ──

func periodListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "列出已物化周期",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := fromContext(cmd.Context()).service()
			if err != nil {
				return err
			}
			list, err := svc.Period.ListPeriods(cmd.Context(), semesterFlag(cmd))
			if err != nil {
				return err
			}
			if globalFlags.jsonOutput {
				return printJSON(cmd.OutOrStdout(), list)
			}

			rows := make([][]string, 0, len(list.Periods))
			for _, p := range list.Periods {
				current := ""
				if p.IsCurrent {
					current = "*"
				}
				rows = append(rows, []string{
					current, strconv.Itoa(p.PeriodNumber), p.TypeLabel, p.StartDate, p.EndDate,
					strconv.FormatBool(p.IsActive), p.CreatedBy,
				})
			}
			return printTable(cmd.OutOrStdout(), []string{"", "编号", "类型", "开始", "结束", "启用", "创建者"}, rows)
		},
	}
}

// ── change-type ──

func periodChangeTypeCommand() *cobra.Command {
	var (
		actor  string
		reason string
	)

	cmd := &cobra.Command{
		Use:   "change-type <weekly|biweekly> <effective-date>",
		Short: "变更后续周期类型（生效日期须晚于今天）",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := fromContext(cmd.Context()).service()
			if err != nil {
				return err
			}

			in := service.ChangePeriodTypeInput{
				SemesterID:    semesterFlag(cmd),
				NewType:       args[0],
				EffectiveDate: args[1],
				Actor:         actor,
			}
			if reason != "" {
				in.Reason = &reason
			}

			result := svc.Period.ChangePeriodType(cmd.Context(), in)
			if globalFlags.jsonOutput {
				if err := printJSON(cmd.OutOrStdout(), dto.ChangePeriodTypeResponse{
					Success:               result.Success,
					Message:               result.Message,
					EffectivePeriodNumber: result.EffectiveFromPeriod,
				}); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			}
			if !result.Success {
				return result.Err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", programName, "操作人")
	cmd.Flags().StringVar(&reason, "reason", "", "变更原因")
	return cmd
}

// ── backfill ──

func periodBackfillCommand() *cobra.Command {
	var through string

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "按旧版 14 天周期写入历史周期",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd.Context())
			svc, err := a.service()
			if err != nil {
				return err
			}

			until := a.clock.Today()
			if through != "" {
				if until, err = clock.ParseDate(through); err != nil {
					return service.ErrInvalidDate
				}
			}

			resp, err := svc.Period.BackfillLegacy(cmd.Context(), semesterFlag(cmd), until)
			if err != nil {
				return err
			}
			if globalFlags.jsonOutput {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			if resp.Created == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "无需回填")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已回填 %d 个周期（第 %d ~ %d 周期）\n",
				resp.Created, *resp.FirstPeriod+1, *resp.LastPeriod+1)
			return nil
		},
	}
	cmd.Flags().StringVar(&through, "through", "", "回填至该日期 YYYY-MM-DD（缺省为今天）")
	return cmd
}

// ── verify ──

func periodVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "校验周期连续性",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := fromContext(cmd.Context()).service()
			if err != nil {
				return err
			}
			report, err := svc.Period.VerifyContinuity(cmd.Context(), semesterFlag(cmd))
			if err != nil {
				return err
			}

			if globalFlags.jsonOutput {
				if err := printJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else if report.OK {
				fmt.Fprintf(cmd.OutOrStdout(), "%d 个周期，连续性正常\n", report.PeriodCount)
			} else {
				rows := make([][]string, 0, len(report.Issues))
				for _, is := range report.Issues {
					rows = append(rows, []string{strconv.Itoa(is.PeriodNumber), is.Kind, is.Detail})
				}
				if err := printTable(cmd.OutOrStdout(), []string{"编号", "问题", "详情"}, rows); err != nil {
					return err
				}
			}

			if !report.OK {
				return errContinuity
			}
			return nil
		},
	}
}
