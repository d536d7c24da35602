package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"echovia/internal/audio"
	"echovia/internal/client"
	"echovia/internal/config"
	"echovia/internal/database"
	"echovia/internal/player"
	"echovia/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type playOptions struct {
	server   string
	email    string
	password string
	token    string
	genre    string
	playlist string
	album    string
	search   string
	autoplay bool
}

func newPlayCmd(configPath *string) *cobra.Command {
	var opts playOptions

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play music from a server in the terminal",
		Long: `play logs into an Echovia server, seeds the queue from the chosen
source and reads player commands from stdin. Without a source flag the
queue restored from the last session is kept, or the whole catalog is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger, closeLog, err := newLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return play(ctx, cfg, opts, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.server, "server", "", "server URL (default player.server_url)")
	f.StringVar(&opts.email, "email", os.Getenv("ECHOVIA_EMAIL"), "account email")
	f.StringVar(&opts.password, "password", os.Getenv("ECHOVIA_PASSWORD"), "account password")
	f.StringVar(&opts.token, "token", os.Getenv("ECHOVIA_TOKEN"), "use an existing session token instead of logging in")
	f.StringVar(&opts.genre, "genre", "", "queue one genre")
	f.StringVar(&opts.playlist, "playlist", "", "queue a playlist by id")
	f.StringVar(&opts.album, "album", "", "queue an album by id")
	f.StringVar(&opts.search, "search", "", "queue the results of a search")
	f.BoolVar(&opts.autoplay, "autoplay", false, "start playing the first queued track")
	return cmd
}

func play(ctx context.Context, cfg *config.Config, opts playOptions, in io.Reader, out io.Writer, logger *logrus.Logger) error {
	serverURL := opts.server
	if serverURL == "" {
		serverURL = cfg.Player.ServerURL
	}
	api, err := client.New(serverURL, nil, logger)
	if err != nil {
		return err
	}

	if opts.token != "" {
		api.SetToken(opts.token)
	} else if opts.email != "" {
		if _, err := api.Login(ctx, opts.email, opts.password); err != nil {
			return fmt.Errorf("login: %w", err)
		}
	} else {
		return errors.New("either --token or --email is required")
	}
	user, err := api.Me(ctx)
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}

	stateDB, err := database.NewDatabase(cfg.Player.StatePath, logger)
	if err != nil {
		return fmt.Errorf("open player state: %w", err)
	}
	defer stateDB.Close()

	speaker := audio.NewSpeaker(audio.Options{
		Resolve: api.Resolve,
		Logger:  logger,
	})
	// playback state is scoped to the account
	coordinator := player.New(speaker, stateDB.PlaybackStore(user.ID), player.WithLogger(logger))
	defer func() {
		coordinator.Close()
		speaker.Close()
	}()

	fmt.Fprintf(out, "Logged in as %s (%s)\n", user.Username, user.Role)

	tracks, err := seedTracks(ctx, api, opts, len(coordinator.State().Queue) > 0)
	if errors.Is(err, client.ErrUnauthorized) {
		coordinator.ClearAll()
	}
	if err != nil {
		return err
	}
	if tracks != nil {
		if opts.autoplay && len(tracks) > 0 {
			if err := coordinator.PlayFrom(tracks, 0); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		} else {
			coordinator.SetQueue(tracks)
		}
		fmt.Fprintf(out, "Queued %d tracks\n", len(tracks))
	}

	con := &console{
		player: coordinator,
		search: api.Search,
		logout: api.Logout,
		out:    out,
	}
	go con.watch(ctx, coordinator.Subscribe())

	fmt.Fprintln(out, `Type "help" for commands.`)
	return con.run(ctx, in)
}

// seedTracks fetches the queue named by the source flags. It returns nil
// when there is nothing to replace: no source was given and a queue was
// restored.
func seedTracks(ctx context.Context, api *client.Client, opts playOptions, restored bool) ([]models.Track, error) {
	switch {
	case opts.playlist != "":
		return api.PlaylistTracks(ctx, opts.playlist)
	case opts.album != "":
		return api.AlbumTracks(ctx, opts.album)
	case opts.genre != "":
		return api.Genre(ctx, opts.genre)
	case opts.search != "":
		return api.Search(ctx, opts.search)
	case restored:
		return nil, nil
	default:
		return api.AllSongs(ctx)
	}
}

// run reads commands until EOF, quit or ctx is done
func (c *console) run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := c.exec(ctx, strings.TrimSpace(line))
			if err != nil {
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}
