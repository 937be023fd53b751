/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	broadcastWebsocket = "websocket"
	broadcastPusher    = "pusher"
)

type Config struct {
	awayTimeout      time.Duration
	bind             string
	broadcast        string
	broadcastRetries int
	cards            string
	heartbeatTimeout time.Duration
	livenessInterval time.Duration
	maxPlayers       int
	minPlayers       int
	port             int
	prefix           string
	profile          bool
	pusherAppID      string
	pusherCluster    string
	pusherKey        string
	pusherSecret     string
	roomCodeLength   int
	sessionTimeout   time.Duration
	skipPenalty      int
	tlsCert          string
	tlsKey           string
	verbose          bool
	version          bool
	wrongPenalty     int
}

// defaultConfig mirrors the flag defaults, for callers that never parse flags.
func defaultConfig() *Config {
	return &Config{
		awayTimeout:      2 * time.Minute,
		bind:             "0.0.0.0",
		broadcast:        broadcastWebsocket,
		broadcastRetries: 3,
		heartbeatTimeout: 45 * time.Second,
		livenessInterval: 5 * time.Second,
		maxPlayers:       5,
		minPlayers:       2,
		port:             8080,
		roomCodeLength:   6,
		sessionTimeout:   60 * time.Minute,
		skipPenalty:      1,
		wrongPenalty:     2,
	}
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.minPlayers < 2 || c.maxPlayers > 5 || c.minPlayers > c.maxPlayers {
		return fmt.Errorf("invalid player bounds (need 2 <= min <= max <= 5): min=%d max=%d", c.minPlayers, c.maxPlayers)
	}
	if c.wrongPenalty < 0 || c.skipPenalty < 0 {
		return errors.New("penalties must not be negative")
	}
	if c.heartbeatTimeout <= 0 || c.livenessInterval <= 0 {
		return errors.New("--heartbeat-timeout and --liveness-interval must be positive")
	}
	if c.awayTimeout < c.heartbeatTimeout {
		return fmt.Errorf("--away-timeout (%s) must not be shorter than --heartbeat-timeout (%s)", c.awayTimeout, c.heartbeatTimeout)
	}
	if c.roomCodeLength < 4 || c.roomCodeLength > 12 {
		return fmt.Errorf("invalid room code length (must be between 4-12 inclusive): %d", c.roomCodeLength)
	}
	if c.broadcastRetries < 1 {
		return errors.New("--broadcast-retries must be at least 1")
	}

	switch c.broadcast {
	case broadcastWebsocket:
	case broadcastPusher:
		if c.pusherAppID == "" || c.pusherKey == "" || c.pusherSecret == "" {
			return errors.New("--pusher-app-id, --pusher-key and --pusher-secret are required with --broadcast=pusher")
		}
	default:
		return fmt.Errorf("unknown broadcast backend %q (want %q or %q)", c.broadcast, broadcastWebsocket, broadcastPusher)
	}

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("BINGOROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "bingoroom",
		Short:         "Serves multiplayer trivia bingo rooms.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	d := defaultConfig()

	fs.DurationVar(&cfg.awayTimeout, "away-timeout", d.awayTimeout, "silence tolerated from a player whose tab reported away (env: BINGOROOM_AWAY_TIMEOUT)")
	fs.StringVarP(&cfg.bind, "bind", "b", d.bind, "address to bind to (env: BINGOROOM_BIND)")
	fs.StringVar(&cfg.broadcast, "broadcast", d.broadcast, "broadcast backend: websocket or pusher (env: BINGOROOM_BROADCAST)")
	fs.IntVar(&cfg.broadcastRetries, "broadcast-retries", d.broadcastRetries, "delivery attempts per event before giving up (env: BINGOROOM_BROADCAST_RETRIES)")
	fs.StringVar(&cfg.cards, "cards", "", "directory of card files; the built-in deck is used when empty (env: BINGOROOM_CARDS)")
	fs.DurationVar(&cfg.heartbeatTimeout, "heartbeat-timeout", d.heartbeatTimeout, "silence before an active player is removed (env: BINGOROOM_HEARTBEAT_TIMEOUT)")
	fs.DurationVar(&cfg.livenessInterval, "liveness-interval", d.livenessInterval, "how often player heartbeats are checked (env: BINGOROOM_LIVENESS_INTERVAL)")
	fs.IntVar(&cfg.maxPlayers, "max-players", d.maxPlayers, "maximum players per room (env: BINGOROOM_MAX_PLAYERS)")
	fs.IntVar(&cfg.minPlayers, "min-players", d.minPlayers, "minimum players to start a game (env: BINGOROOM_MIN_PLAYERS)")
	fs.IntVarP(&cfg.port, "port", "p", d.port, "port to listen on (env: BINGOROOM_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: BINGOROOM_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: BINGOROOM_PROFILE)")
	fs.StringVar(&cfg.pusherAppID, "pusher-app-id", "", "pusher app id (env: BINGOROOM_PUSHER_APP_ID)")
	fs.StringVar(&cfg.pusherCluster, "pusher-cluster", "eu", "pusher cluster (env: BINGOROOM_PUSHER_CLUSTER)")
	fs.StringVar(&cfg.pusherKey, "pusher-key", "", "pusher key (env: BINGOROOM_PUSHER_KEY)")
	fs.StringVar(&cfg.pusherSecret, "pusher-secret", "", "pusher secret (env: BINGOROOM_PUSHER_SECRET)")
	fs.IntVar(&cfg.roomCodeLength, "room-code-length", d.roomCodeLength, "length of generated room codes (env: BINGOROOM_ROOM_CODE_LENGTH)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", d.sessionTimeout, "time before idle rooms are closed, 0 to disable (env: BINGOROOM_SESSION_TIMEOUT)")
	fs.IntVar(&cfg.skipPenalty, "skip-penalty", d.skipPenalty, "availability lost on a skip or time-up (env: BINGOROOM_SKIP_PENALTY)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: BINGOROOM_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: BINGOROOM_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: BINGOROOM_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: BINGOROOM_VERSION)")
	fs.IntVar(&cfg.wrongPenalty, "wrong-penalty", d.wrongPenalty, "availability lost on a wrong guess (env: BINGOROOM_WRONG_PENALTY)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("bingoroom v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
