package notify

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/linewalk/internal/app"
	"github.com/tphakala/linewalk/internal/conf"
	"github.com/tphakala/linewalk/internal/notification"
)

// Command returns a cobra command that sends a test notification through the
// configured push services
func Command(settings *conf.Settings) *cobra.Command {
	var (
		typ       string
		message   string
		component string
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a test push notification",
		Long: `Send a test notification through the notification service.
Only warnings and errors are pushed, so the default type is warning.

Examples:
  linewalk notify --message="Line 101 audit overdue"
  linewalk notify --type=error --component=export --message="Upload failed"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ntype, err := parseType(typ)
			if err != nil {
				return err
			}
			if !settings.Notification.Push.Enabled || len(settings.Notification.Push.URLs) == 0 {
				return fmt.Errorf("push notifications are not configured, set notification.push.enabled and notification.push.urls")
			}

			service := app.Notifications(settings, nil, app.GetLogger())
			toast := service.Notify(ntype, component, message)
			service.Wait()

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Notification sent: id=%s type=%s pushed=%t\n",
				toast.ID, toast.Type, toast.Pushable())
			return err
		},
	}

	cmd.Flags().StringVar(&typ, "type", string(notification.TypeWarning), "Notification type: error|warning|info|success")
	cmd.Flags().StringVar(&message, "message", "This is a test push notification", "Notification message")
	cmd.Flags().StringVar(&component, "component", "cli", "Notification component tag")

	return cmd
}

func parseType(s string) (notification.Type, error) {
	switch t := notification.Type(s); t {
	case notification.TypeError, notification.TypeWarning, notification.TypeInfo, notification.TypeSuccess:
		return t, nil
	default:
		return "", fmt.Errorf("invalid type: %s", s)
	}
}
