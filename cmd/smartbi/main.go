package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "smartbi",
		Short:        "Smart BI - báo cáo doanh số và tuyến bán hàng",
		Long:         "Smart BI 导入销售工作簿（客户、营收、路线明细等），提供筛选、分析、图表与路线重算的 Web 服务。",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newServeCmd(), newInspectCmd(), newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(version)
		},
	}
}
