package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var msgCmd = &cobra.Command{
	Use:   "msg",
	Short: "Send and read messages",
}

var msgWith string

var msgSendCmd = &cobra.Command{
	Use:   "send <user-id> <text>",
	Short: "Send a message",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := call("SendMessage", map[string]any{"receiver_id": args[0], "text": args[1]})
		if err != nil {
			return err
		}
		printWrite("Message", resp)
		return nil
	},
}

func printMessages(resp map[string]any) {
	if printed(resp) {
		return
	}
	list := items(resp)
	if len(list) == 0 {
		fmt.Println("No messages.")
		return
	}
	for _, m := range list {
		fmt.Printf("%s  %s -> %s: %s\n", millis(m["timestamp"]), m["sender_id"], m["receiver_id"], m["text"])
	}
	printSource(resp)
}

var msgListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List your messages, or one conversation with --with",
	RunE: func(cmd *cobra.Command, args []string) error {
		method, req := "MessagesForUser", map[string]any{}
		if msgWith != "" {
			method, req["with"] = "Conversation", msgWith
		}
		resp, err := call(method, req)
		if err != nil {
			return err
		}
		printMessages(resp)
		return nil
	},
}

var msgWatchCmd = &cobra.Command{
	Use:   "watch <user-id>",
	Short: "Follow a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return stream("WatchConversation", map[string]any{"with": args[0]}, func(resp map[string]any) error {
			if !jsonFlag {
				fmt.Println("---")
			}
			printMessages(resp)
			return nil
		})
	},
}

var msgSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull new messages and deliver pending notifications now",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := map[string]any{}
		if msgWith != "" {
			req["with"] = msgWith
		}
		resp, err := call("SyncMessages", req)
		if err != nil {
			return err
		}
		if printed(resp) {
			return nil
		}
		fmt.Printf("Incoming: %.0f\n", resp["incoming"])
		fmt.Printf("Notified: %.0f\n", resp["notified"])
		return nil
	},
}

func init() {
	msgListCmd.Flags().StringVar(&msgWith, "with", "", "other user id")
	msgSyncCmd.Flags().StringVar(&msgWith, "with", "", "also pull the conversation with this user")
	msgCmd.AddCommand(msgSendCmd, msgListCmd, msgWatchCmd, msgSyncCmd)
}
