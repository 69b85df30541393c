package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xxxkjing/ClassComp-Score/internal/dto"
)

func semesterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "semester",
		Short: "学期配置",
	}
	cmd.AddCommand(semesterCreateCommand())
	cmd.AddCommand(semesterListCommand())
	cmd.AddCommand(semesterActivateCommand())
	return cmd
}

func semesterCreateCommand() *cobra.Command {
	var (
		req     dto.CreateSemesterRequest
		endDate string
		actor   string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "创建学期",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd.Context())
			svc, err := a.service()
			if err != nil {
				return err
			}
			if endDate != "" {
				req.EndDate = &endDate
			}

			semester, err := svc.Semester.Create(cmd.Context(), &req, actor)
			if err != nil {
				return err
			}
			return printSemesters(cmd, []dto.SemesterResponse{*semester})
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "学期名称")
	cmd.Flags().StringVar(&req.StartDate, "start", "", "学期开始日期 YYYY-MM-DD")
	cmd.Flags().StringVar(&req.FirstPeriodEndDate, "first-end", "", "第一周期结束日期 YYYY-MM-DD")
	cmd.Flags().StringVar(&endDate, "end", "", "学期结束日期 YYYY-MM-DD（可选）")
	cmd.Flags().StringVar(&req.DefaultPeriodType, "type", "", "默认周期类型 weekly|biweekly（缺省取配置）")
	cmd.Flags().BoolVar(&req.Activate, "activate", false, "创建后设为活动学期")
	cmd.Flags().StringVar(&actor, "actor", programName, "操作人")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("first-end")
	return cmd
}

func semesterListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "列出学期",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := fromContext(cmd.Context()).service()
			if err != nil {
				return err
			}
			list, err := svc.Semester.List(cmd.Context())
			if err != nil {
				return err
			}
			return printSemesters(cmd, list)
		},
	}
}

func semesterActivateCommand() *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "activate <semester-id>",
		Short: "设为活动学期",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := fromContext(cmd.Context()).service()
			if err != nil {
				return err
			}
			if err := svc.Semester.Activate(cmd.Context(), args[0], actor); err != nil {
				return err
			}
			semester, err := svc.Semester.GetByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printSemesters(cmd, []dto.SemesterResponse{*semester})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", programName, "操作人")
	return cmd
}

func printSemesters(cmd *cobra.Command, list []dto.SemesterResponse) error {
	if globalFlags.jsonOutput {
		return printJSON(cmd.OutOrStdout(), list)
	}
	rows := make([][]string, 0, len(list))
	for _, s := range list {
		rows = append(rows, []string{
			s.ID, s.Name, s.StartDate, s.FirstPeriodEndDate, s.CurrentPeriodLabel, strconv.FormatBool(s.IsActive),
		})
	}
	return printTable(cmd.OutOrStdout(), []string{"ID", "名称", "开始", "第一周期结束", "当前类型", "活动"}, rows)
}
