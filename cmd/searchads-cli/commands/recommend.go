package commands

import (
	"os"

	"searchads-client/internal/query"

	"github.com/spf13/cobra"
)

type recommendFlags struct {
	appID       int64
	storefronts []string
}

var recommend recommendFlags

func init() {
	flags := recommendCmd.Flags()
	flags.Int64Var(&recommend.appID, "app", 0, "The adam id of the app to recommend keywords for.")
	flags.StringSliceVar(&recommend.storefronts, "storefront", []string{"US"}, "Two letter storefront codes, may be repeated.")
	rootCmd.AddCommand(recommendCmd)
}

func (f recommendFlags) build(text string) (query.Query, error) {
	b, err := query.New(query.KeywordsRecommendation)
	if err != nil {
		return query.Query{}, err
	}
	err = b.AppID(f.appID)
	if err != nil {
		return query.Query{}, err
	}
	err = b.KeywordText(text)
	if err != nil {
		return query.Query{}, err
	}
	err = b.Storefronts(f.storefronts...)
	if err != nil {
		return query.Query{}, err
	}
	return b.Build()
}

var recommendCmd = &cobra.Command{
	Use:   "recommend --app <adam id> <keyword>",
	Short: "Prints keyword recommendations and their popularity for an app.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		q, err := recommend.build(args[0])
		if err != nil {
			fatal(err)
		}

		client, cleanup, err := login(cmd.Context())
		if err != nil {
			fatal(err)
		}
		defer cleanup()

		res, err := client.Do(cmd.Context(), q)
		if err != nil {
			fatal(err)
		}
		data, err := res.Data()
		if err != nil {
			fatal(err)
		}
		err = renderRows(os.Stdout, data)
		if err != nil {
			fatal(err)
		}
	},
}
