package ctl

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gigboard/gigchat/internal/session"
)

func addLogin(topLevel *cobra.Command, o *Options) {
	var userID, token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the marketplace credentials of a profile.",
		Example: `
gigchatctl login --user 64f1c2 --token "$GIGBOARD_TOKEN"
GIGCHAT_TOKEN=... gigchatctl --profile work login --user 64f1c2
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := o.profile()
			if err != nil {
				return err
			}
			if token == "" {
				token = os.Getenv("GIGCHAT_TOKEN")
			}
			s := session.Session{Profile: name, UserID: userID, Token: token}
			if err := session.Save(s); err != nil {
				return o.HandleError(fmt.Errorf("login: %w", err))
			}
			if o.JSON {
				return o.printJSON(map[string]string{"profile": name, "userId": userID})
			}
			_, _ = okColor.Fprintf(o.writer(), "logged in as %s (profile %s)\n", userID, name)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "your marketplace user id")
	cmd.Flags().StringVar(&token, "token", "", "bearer token (default $GIGCHAT_TOKEN)")
	topLevel.AddCommand(cmd)
}

func addLogout(topLevel *cobra.Command, o *Options) {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the credentials of a profile.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := o.profile()
			if err != nil {
				return err
			}
			if err := session.Remove(name); err != nil {
				return o.HandleError(fmt.Errorf("logout: %w", err))
			}
			if o.JSON {
				return o.printJSON(map[string]string{"profile": name})
			}
			_, _ = fmt.Fprintf(o.writer(), "logged out of profile %s\n", name)
			return nil
		},
	}
	topLevel.AddCommand(cmd)
}
