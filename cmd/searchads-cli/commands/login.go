package commands

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(cookiesCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Logs in and saves the session to the configured session store.",
	Run: func(cmd *cobra.Command, args []string) {
		client, cleanup, err := login(cmd.Context())
		if err != nil {
			fatal(err)
		}
		defer cleanup()

		fmt.Println("logged in")
		if config.SessionStore.Redis.Addr == "" && config.SessionStore.SQLite.File == "" {
			fmt.Println("no session store is configured, export these to reuse the session:")
			fmt.Printf("%s=%q\n", envCookies, client.Cookies())
			fmt.Printf("%s=%q\n", envXSRFToken, client.XSRFToken())
		}
	},
}

var cookiesCmd = &cobra.Command{
	Use:   "cookies",
	Short: "Logs in and lists the cookies of the resulting session.",
	Run: func(cmd *cobra.Command, args []string) {
		client, cleanup, err := login(cmd.Context())
		if err != nil {
			fatal(err)
		}
		defer cleanup()

		snap := client.Session()
		t := newTable(os.Stdout)
		t.AppendHeader(table.Row{"Name", "Value"})
		for _, c := range snap.Cookies {
			t.AppendRow(table.Row{c.Name, c.Value})
		}
		t.AppendFooter(table.Row{"x-xsrf-token-cm", snap.XSRFToken})
		t.Render()
	},
}
