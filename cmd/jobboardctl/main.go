package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/matheus3301/jobboard/internal/api"
	"github.com/matheus3301/jobboard/internal/profile"
	"github.com/spf13/cobra"
)

var (
	profileFlag string
	jsonFlag    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "jobboardctl",
	Short:         "Control a running jobboard daemon",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "profile name (overrides config default)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "output in JSON format")
	rootCmd.AddCommand(statusCmd, userCmd, jobCmd, msgCmd, eventsCmd)
}

// connect dials the daemon of the selected profile.
func connect() (*api.Client, error) {
	name := profile.Resolve(profileFlag)
	if err := profile.ValidateName(name); err != nil {
		return nil, err
	}
	c, err := api.Dial(profile.SocketPath(name))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon for profile %q: %w", name, err)
	}
	return c, nil
}

// call runs one unary method with a short timeout.
func call(method string, req map[string]any) (map[string]any, error) {
	c, err := connect()
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.Call(ctx, method, req)
}

// stream follows a server stream until interrupted.
func stream(method string, req map[string]any, fn func(map[string]any) error) error {
	c, err := connect()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err = c.Stream(ctx, method, req, fn)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}

// printed reports whether resp was written as JSON.
func printed(resp map[string]any) bool {
	if jsonFlag {
		outputJSON(resp)
	}
	return jsonFlag
}

func millis(v any) string {
	f, _ := v.(float64)
	if f == 0 {
		return "-"
	}
	return time.UnixMilli(int64(f)).Format("2006-01-02 15:04:05")
}

func items(resp map[string]any) []map[string]any {
	raw, _ := resp["items"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, it := range raw {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func printWrite(what string, resp map[string]any) {
	if printed(resp) {
		return
	}
	switch {
	case resp["existing"] == true:
		fmt.Printf("%s %s already stored\n", what, resp["id"])
	case resp["mirrored"] == true:
		fmt.Printf("%s %s saved\n", what, resp["id"])
	default:
		fmt.Printf("%s %s saved locally (remote unavailable)\n", what, resp["id"])
	}
}

func printSource(resp map[string]any) {
	if src, ok := resp["source"].(string); ok && src != "remote" {
		fmt.Printf("(%s)\n", src)
	}
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := call("GetStatus", nil)
		if err != nil {
			return err
		}
		if printed(resp) {
			return nil
		}
		fmt.Printf("Profile: %s\n", resp["profile"])
		fmt.Printf("Status:  %s\n", resp["status"])
		fmt.Printf("Online:  %v\n", resp["online"])
		fmt.Printf("Uptime:  %.0fms\n", resp["uptime_ms"])
		switch {
		case resp["user_id"] != nil:
			fmt.Printf("User:    %s\n", resp["user_id"])
		case resp["guest"] == true:
			fmt.Println("User:    guest")
		default:
			fmt.Println("User:    signed out")
		}
		return nil
	},
}

var eventsNamespace string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow daemon events",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stream("WatchEvents", map[string]any{"namespace": eventsNamespace}, func(evt map[string]any) error {
			if printed(evt) {
				return nil
			}
			payload, _ := json.Marshal(evt["payload"])
			fmt.Printf("%s %-20s %s\n", millis(evt["timestamp"]), evt["kind"], payload)
			return nil
		})
	},
}

func init() {
	eventsCmd.Flags().StringVar(&eventsNamespace, "namespace", "", "event kind prefix, e.g. store.jobs.")
}
