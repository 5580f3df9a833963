package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userForm struct {
	first, last, middle string
	email, phone        string
	username, password  string
	photo               int
}

var userRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := call("RegisterUser", map[string]any{
			"first_name":  userForm.first,
			"last_name":   userForm.last,
			"middle_name": userForm.middle,
			"email":       userForm.email,
			"phone":       userForm.phone,
			"username":    userForm.username,
			"password":    userForm.password,
			"photo_id":    userForm.photo,
		})
		if err != nil {
			return err
		}
		printWrite("User", resp)
		return nil
	},
}

var userLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := call("Login", map[string]any{"email": userForm.email, "password": userForm.password})
		if err != nil {
			return err
		}
		if printed(resp) {
			return nil
		}
		u, _ := resp["user"].(map[string]any)
		fmt.Printf("Signed in as %s (%s)\n", u["display_name"], u["id"])
		return nil
	},
}

var userGuestCmd = &cobra.Command{
	Use:   "guest",
	Short: "Continue as a guest",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := call("LoginGuest", nil); err != nil {
			return err
		}
		fmt.Println("Signed in as guest")
		return nil
	},
}

var userLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := call("Logout", nil); err != nil {
			return err
		}
		fmt.Println("Signed out")
		return nil
	},
}

var userShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show an account, by default your own",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := map[string]any{}
		method := "GetUser"
		switch {
		case len(args) == 1:
			req["id"] = args[0]
		case userForm.email != "":
			method, req["email"] = "FindUser", userForm.email
		case userForm.username != "":
			method, req["username"] = "FindUser", userForm.username
		}
		resp, err := call(method, req)
		if err != nil {
			return err
		}
		if printed(resp) {
			return nil
		}
		u, ok := resp["user"].(map[string]any)
		if !ok {
			fmt.Println("No such user.")
			return nil
		}
		printUser(u)
		printSource(resp)
		return nil
	},
}

func printUser(u map[string]any) {
	fmt.Printf("ID:       %s\n", u["id"])
	fmt.Printf("Name:     %s\n", u["display_name"])
	fmt.Printf("Username: %s\n", u["username"])
	fmt.Printf("Email:    %s\n", u["email"])
	if u["phone"] != "" {
		fmt.Printf("Phone:    %s\n", u["phone"])
	}
	if u["photo_url"] != "" {
		fmt.Printf("Photo:    %s\n", u["photo_url"])
	} else {
		fmt.Printf("Photo:    #%.0f\n", u["photo_id"])
	}
}

func printUsers(resp map[string]any) {
	if printed(resp) {
		return
	}
	list := items(resp)
	if len(list) == 0 {
		fmt.Println("No users found.")
		return
	}
	for _, u := range list {
		fmt.Printf("%-20s %-16s %s\n", u["id"], u["username"], u["display_name"])
	}
	printSource(resp)
}

var userListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := call("ListUsers", nil)
		if err != nil {
			return err
		}
		printUsers(resp)
		return nil
	},
}

var userSearchLimit int

var userSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search accounts by username or name prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := call("SearchUsers", map[string]any{"query": args[0], "limit": userSearchLimit})
		if err != nil {
			return err
		}
		printUsers(resp)
		return nil
	},
}

var photoURL string

var userPhotoCmd = &cobra.Command{
	Use:   "photo",
	Short: "Set your profile photo",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := map[string]any{"photo_id": userForm.photo}
		if cmd.Flags().Changed("url") {
			req = map[string]any{"photo_url": photoURL}
		}
		resp, err := call("SetProfilePhoto", req)
		if err != nil {
			return err
		}
		printWrite("User", resp)
		return nil
	},
}

func init() {
	f := userRegisterCmd.Flags()
	f.StringVar(&userForm.first, "first", "", "first name")
	f.StringVar(&userForm.last, "last", "", "last name")
	f.StringVar(&userForm.middle, "middle", "", "middle name")
	f.StringVar(&userForm.phone, "phone", "", "phone number")
	f.StringVar(&userForm.username, "username", "", "username")
	f.IntVar(&userForm.photo, "photo", 0, "avatar selector 0-6")
	for _, c := range []*cobra.Command{userRegisterCmd, userLoginCmd} {
		c.Flags().StringVar(&userForm.email, "email", "", "email address")
		c.Flags().StringVar(&userForm.password, "password", "", "password")
	}
	userShowCmd.Flags().StringVar(&userForm.email, "email", "", "find by email")
	userShowCmd.Flags().StringVar(&userForm.username, "username", "", "find by username")
	userSearchCmd.Flags().IntVar(&userSearchLimit, "limit", 0, "maximum results")
	userPhotoCmd.Flags().IntVar(&userForm.photo, "id", 0, "avatar selector 0-6")
	userPhotoCmd.Flags().StringVar(&photoURL, "url", "", "uploaded photo URL")

	userCmd.AddCommand(userRegisterCmd, userLoginCmd, userGuestCmd, userLogoutCmd,
		userShowCmd, userListCmd, userSearchCmd, userPhotoCmd)
}
