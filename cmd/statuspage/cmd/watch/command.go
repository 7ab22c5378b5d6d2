// Package watch provides a terminal consumer of an organization's realtime
// status updates.
package watch

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/statuspage/cmd/application"
	"github.com/agentstation/statuspage/internal/cmd/emoji"
	"github.com/agentstation/statuspage/internal/cmd/output"
	"github.com/agentstation/statuspage/pkg/client"
	"github.com/agentstation/statuspage/pkg/errors"
	"github.com/agentstation/statuspage/pkg/events"
	"github.com/agentstation/statuspage/pkg/status"
)

// Options are the watch command flags.
type Options struct {
	Server            string
	Organization      string
	WSPath            string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	ShowEvents        bool
	Once              bool
	Format            string
}

// NewCommand creates the watch command. defaultServer is the configured
// server_url.
func NewCommand(app application.Application, defaultServer string) *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow an organization's status page as it changes",
		Long: `Watch connects to a running status page server, joins the
organization's realtime room and re-reads the public status snapshot
after every change and every reconnect.

Event payloads are only used as a signal; what is printed always comes
from the server's authoritative snapshot.`,
		Example: `  # Follow the demo organization on a local server
  statuspage watch

  # Follow another organization and print every event as it arrives
  statuspage watch --org acme --events --server https://status.example.com

  # Print a single snapshot as JSON and exit
  statuspage watch --once -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f := cmd.Flag("format"); f != nil && opts.Format == "" {
				opts.Format = f.Value.String()
			}
			return Run(cmd.Context(), app, *opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.Server, "server", defaultServer, "Status page server base URL")
	cmd.Flags().StringVar(&opts.Organization, "org", status.DefaultOrganizationSlug, "Organization slug")
	cmd.Flags().StringVar(&opts.WSPath, "ws-path", client.DefaultWSPath, "Server WebSocket path")
	cmd.Flags().IntVar(&opts.ReconnectAttempts, "reconnect-attempts", client.DefaultReconnectAttempts, "Consecutive failed dials before giving up")
	cmd.Flags().DurationVar(&opts.ReconnectDelay, "reconnect-delay", client.DefaultReconnectDelay, "Delay between reconnect attempts")
	cmd.Flags().BoolVar(&opts.ShowEvents, "events", false, "Print every realtime event")
	cmd.Flags().BoolVar(&opts.Once, "once", false, "Print the current snapshot and exit")

	return cmd
}

// Run follows opts.Organization until ctx is done or the connection is
// given up.
func Run(ctx context.Context, app application.Application, opts Options, out, errOut io.Writer) error {
	logger := app.Logger()
	format, err := output.ParseFormat(opts.Format)
	if err != nil {
		return errors.NewValidationError("format", opts.Format, err.Error())
	}
	if format == "" {
		format = output.DetectFormat("")
	}
	p := &printer{out: out, format: format, formatter: output.NewFormatter(format)}

	reader := client.NewStatusReader(opts.Server, nil)
	if opts.Once {
		ps, err := reader.PublicStatus(ctx, opts.Organization)
		if err != nil {
			return err
		}
		return p.print(ps)
	}

	c, err := client.New(opts.Server,
		client.WithWSPath(opts.WSPath),
		client.WithReconnectAttempts(opts.ReconnectAttempts),
		client.WithReconnectDelay(opts.ReconnectDelay),
		client.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	gaveUp := make(chan struct{})
	var once sync.Once
	c.OnStateChange(func(s client.State) {
		fmt.Fprintf(errOut, "%s %s\n", emoji.Info, s)
		if s == client.Disconnected && ctx.Err() == nil {
			once.Do(func() { close(gaveUp) })
		}
	})
	if opts.ShowEvents {
		c.Subscribe(client.Handlers{OnEvent: func(m events.Message) {
			fmt.Fprintf(errOut, "%s %s %s\n", emoji.Info, m.Event, string(m.Data))
		}})
	}

	c.SetOrganization(opts.Organization)
	resyncer := client.NewResyncer(c, reader, opts.Organization, func(ps *status.PublicStatus) {
		if err := p.print(ps); err != nil {
			logger.Warn().Err(err).Msg("Failed to print snapshot")
		}
	})
	go resyncer.Run(ctx)

	if err := c.Connect(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return nil
	case <-gaveUp:
		fmt.Fprintf(errOut, "%s gave up on %s after %d attempts\n", emoji.Warning, c.URL(), opts.ReconnectAttempts)
		return errors.NewResourceError("connect", "realtime", c.URL(), errors.ErrClosed)
	}
}

// printer serializes snapshot output from resync callbacks.
type printer struct {
	mu        sync.Mutex
	out       io.Writer
	format    output.Format
	formatter output.Formatter
}

func (p *printer) print(ps *status.PublicStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.format != output.FormatTable {
		return p.formatter.Format(p.out, ps)
	}
	fmt.Fprintf(p.out, "%s: %s (%s%% operational) at %s\n",
		ps.Organization.Name,
		status.DisplayName(ps.Status.Overall),
		strconv.FormatFloat(ps.Status.Uptime, 'f', -1, 64),
		ps.Timestamp.Local().Format(time.TimeOnly))
	return p.formatter.Format(p.out, snapshot{ps})
}

// snapshot renders a public status as a service table.
type snapshot struct {
	*status.PublicStatus
}

// Table implements output.Tabular.
func (s snapshot) Table() output.Data {
	d := output.Data{Headers: []string{"Service", "Status", "Incidents", "Maintenance"}}
	for _, svc := range s.Services {
		maintenance := ""
		if svc.Maintenance != nil {
			maintenance = svc.Maintenance.Title
		}
		d.Rows = append(d.Rows, []string{
			svc.Name,
			status.DisplayName(svc.Status),
			strconv.Itoa(len(svc.Incidents)),
			maintenance,
		})
	}
	return d
}
