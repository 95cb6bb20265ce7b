package main

import (
	"fmt"
	"os"

	"github.com/monobilisim/logagent/chat"
	"github.com/monobilisim/logagent/common"
	"github.com/monobilisim/logagent/common/api/server"
	"github.com/monobilisim/logagent/logs"
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:     "logagent",
	Short:   "Conversational log analytics agent",
	Version: common.Version,
}

func main() {
	var serverCmd = &cobra.Command{
		Use:   "server",
		Short: "Run the log API server",
		Run:   server.ServerMain,
	}
	serverCmd.Flags().StringP("port", "p", "", "Listen port (overrides server.port)")

	RootCmd.AddCommand(serverCmd)
	RootCmd.AddCommand(chat.NewChatCmd())
	RootCmd.AddCommand(chat.NewAskCmd())
	RootCmd.AddCommand(logs.NewLogsCmd())

	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
