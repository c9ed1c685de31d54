package commands

import (
	"encoding/json"
	"os"
	"strings"

	"searchads-client/internal/query"

	"github.com/spf13/cobra"
)

type reportFlags struct {
	appID       int64
	measure     string
	start       string
	end         string
	timezone    string
	granularity string
	groupBy     []string
	orderBy     string
	descending  bool
	limit       int
	offset      int
	rowTotals   bool
}

var reports reportFlags

func init() {
	flags := reportsCmd.Flags()
	flags.Int64Var(&reports.appID, "app", 0, "The adam id of the app to report on.")
	flags.StringVar(&reports.measure, "measure", string(query.Campaigns), "campaigns, adgroups, keywords or searchterms.")
	flags.StringVar(&reports.start, "start", "", "The first day of the report (YYYY-MM-DD), defaults to today.")
	flags.StringVar(&reports.end, "end", "", "The last day of the report (YYYY-MM-DD), defaults to --start.")
	flags.StringVar(&reports.timezone, "timezone", query.TimezoneUTC, "UTC or ORTZ (the organization's time zone).")
	flags.StringVar(&reports.granularity, "granularity", "", "HOURLY, DAILY, WEEKLY or MONTHLY.")
	flags.StringSliceVar(&reports.groupBy, "group-by", nil, "Dimensions to group rows by, may be repeated.")
	flags.StringVar(&reports.orderBy, "order-by", "", "The field to sort rows by.")
	flags.BoolVar(&reports.descending, "desc", false, "Sort descending.")
	flags.IntVar(&reports.limit, "limit", query.DefaultLimit, "The max amount of rows.")
	flags.IntVar(&reports.offset, "offset", query.DefaultOffset, "The amount of rows to skip.")
	flags.BoolVar(&reports.rowTotals, "totals", false, "Include row totals.")
	rootCmd.AddCommand(reportsCmd)
}

func (f reportFlags) build() (query.Query, error) {
	b, err := query.New(query.Reports)
	if err != nil {
		return query.Query{}, err
	}

	if f.appID != 0 {
		err = b.AppID(f.appID)
		if err != nil {
			return query.Query{}, err
		}
	}
	err = b.Measure(query.Measure(strings.ToLower(f.measure)))
	if err != nil {
		return query.Query{}, err
	}
	err = b.Timezone(strings.ToUpper(f.timezone))
	if err != nil {
		return query.Query{}, err
	}
	if f.start != "" {
		if f.end != "" {
			err = b.Date(f.start, f.end)
		} else {
			err = b.Date(f.start)
		}
		if err != nil {
			return query.Query{}, err
		}
	}
	if f.granularity != "" {
		err = b.Granularity(query.Granularity(strings.ToUpper(f.granularity)))
		if err != nil {
			return query.Query{}, err
		}
	}
	for _, key := range f.groupBy {
		err = b.GroupBy(query.GroupKey(key))
		if err != nil {
			return query.Query{}, err
		}
	}
	if f.orderBy != "" {
		order := query.Ascending
		if f.descending {
			order = query.Descending
		}
		err = b.OrderBy(f.orderBy, order)
		if err != nil {
			return query.Query{}, err
		}
	}
	err = b.Limit(f.limit)
	if err != nil {
		return query.Query{}, err
	}
	err = b.Offset(f.offset)
	if err != nil {
		return query.Query{}, err
	}
	b.ReturnRowTotals(f.rowTotals)

	return b.Build()
}

var reportsCmd = &cobra.Command{
	Use:   "reports [--measure campaigns] [--start YYYY-MM-DD] [--end YYYY-MM-DD]",
	Short: "Fetches a report and prints its rows.",
	Run: func(cmd *cobra.Command, args []string) {
		q, err := reports.build()
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
		err = renderRows(os.Stdout, reportRows(data))
		if err != nil {
			fatal(err)
		}
	},
}

// reportRows digs the row list out of a report response, other shapes are
// returned unchanged.
func reportRows(data json.RawMessage) json.RawMessage {
	var body struct {
		ReportingDataResponse struct {
			Row json.RawMessage `json:"row"`
		} `json:"reportingDataResponse"`
	}
	err := json.Unmarshal(data, &body)
	if err != nil || len(body.ReportingDataResponse.Row) == 0 {
		return data
	}
	return body.ReportingDataResponse.Row
}
