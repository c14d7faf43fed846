package main

import (
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/huddle/internal/adapters/rtc"
	"github.com/dkeye/huddle/internal/client"
	"github.com/dkeye/huddle/internal/domain"
)

// newJoinCmd runs a headless participant that receives media but sends none.
func newJoinCmd() *cobra.Command {
	var (
		url        string
		token      string
		meeting    string
		password   string
		iceServers []string
	)
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a meeting as a receive-only participant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			sess, err := client.Dial(ctx, client.Options{
				URL:     url,
				Token:   token,
				Factory: &rtc.Factory{Config: rtc.ConfigFor(iceServers), RecvOnly: true},
			})
			if err != nil {
				return err
			}
			defer sess.Close()
			if err := sess.Join(domain.RoomID(meeting), password); err != nil {
				return err
			}

			for {
				select {
				case <-ctx.Done():
					_ = sess.Leave()
					return nil
				case ev, ok := <-sess.Events():
					if !ok {
						return nil
					}
					logEvent(ev)
				}
			}
		},
	}
	cmd.Flags().StringVar(&url, "url", "ws://localhost:8080/api/ws/signal", "signaling endpoint")
	cmd.Flags().StringVar(&token, "token", "", "access token")
	cmd.Flags().StringVar(&meeting, "meeting", "", "meeting id")
	cmd.Flags().StringVar(&password, "password", "", "meeting password")
	cmd.Flags().StringSliceVar(&iceServers, "ice", []string{"stun:stun.l.google.com:19302"}, "ICE server URLs")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("meeting")
	return cmd
}

func logEvent(ev client.Event) {
	e := log.Info().Str("module", "join").Str("event", string(ev.Kind))
	if ev.IdentityID != "" {
		e = e.Str("identity", string(ev.IdentityID))
	}
	if ev.Message != nil {
		e = e.Str("type", string(ev.Message.Kind()))
	}
	if ev.Track != nil {
		e = e.Str("codec", ev.Track.Codec().MimeType)
	}
	if ev.Err != nil {
		e = e.AnErr("cause", ev.Err)
	}
	e.Msg("event")
}
