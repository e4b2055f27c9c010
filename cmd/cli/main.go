// Command asq is a CLI client for the action-sync service. It queues
// actions locally while offline and flushes them to the server on demand.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/actionsync/internal/client/queue"
	"github.com/and161185/actionsync/internal/client/remote"
	clientsync "github.com/and161185/actionsync/internal/client/sync"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "actionsync")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "actionsync")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tf tokenFile) error {
	_ = os.MkdirAll(cfgDir(), 0o700)
	f, err := os.Create(tokenPath())
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tf)
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

// ---- local queues ----

func queuePath() string      { return filepath.Join(cfgDir(), "queue.json") }
func quarantinePath() string { return filepath.Join(cfgDir(), "quarantine.json") }

func localQueues() (*queue.Queue, *queue.Queue) {
	return queue.New(queue.NewFileStore(queuePath())),
		queue.New(queue.NewFileStore(quarantinePath()))
}

// ---- utils ----

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func parsePayload(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		fail(fmt.Errorf("payload must be a JSON object: %w", err))
	}
	return m
}

func authedClient(addr string) *remote.Client {
	token, err := loadToken()
	if err != nil {
		fail(err)
	}
	c := remote.New(addr)
	c.SetToken(token)
	return c
}

func usage() {
	fmt.Fprintf(os.Stderr, `asq CLI
Usage:
  asq -addr http://HOST:PORT <cmd> [args]

Commands:
  version
  register  -u <username> -p <password>
  login     -u <username> -p <password>            (saves token)
  add       -action <type> [-payload <json>]       (enqueue locally)
  queue                                            (show local queue)
  flush                                            (deliver queued actions)
  clear                                            (drop local queue)
  list                                             (server: pending/failed)
  retry     -id <action id>                        (server: failed -> pending)
  dead                                             (show quarantined items)
  requeue   -key <idempotency key>                 (quarantine -> queue)
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands.
func main() {
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd {

	case "version":
		fmt.Printf("asq %s (%s)\n", version, buildDate)

	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		u := fs.String("u", "", "username")
		p := fs.String("p", "", "password")
		_ = fs.Parse(flag.Args()[1:])
		if *u == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -u and -p")
			os.Exit(1)
		}
		userID, err := remote.New(*addr).Register(ctx, *u, *p)
		if err != nil {
			fail(err)
		}
		fmt.Println(userID)

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		u := fs.String("u", "", "username")
		p := fs.String("p", "", "password")
		_ = fs.Parse(flag.Args()[1:])
		if *u == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -u and -p")
			os.Exit(1)
		}
		resp, err := remote.New(*addr).Login(ctx, *u, *p)
		if err != nil {
			fail(err)
		}
		if err := saveToken(tokenFile{
			AccessToken: resp.AccessToken,
			ExpiresAt:   resp.ExpiresAt,
			UserID:      resp.UserID,
		}); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "add":
		fs := flag.NewFlagSet("add", flag.ExitOnError)
		action := fs.String("action", "", "action type (e.g. cart.add)")
		payload := fs.String("payload", "", "JSON payload")
		_ = fs.Parse(flag.Args()[1:])
		if *action == "" {
			fmt.Fprintln(os.Stderr, "need -action")
			os.Exit(1)
		}
		q, _ := localQueues()
		item, err := q.Enqueue(*action, parsePayload(*payload))
		if err != nil {
			fail(err)
		}
		printJSON(item)

	case "queue":
		q, _ := localQueues()
		printJSON(q.List())

	case "dead":
		_, dead := localQueues()
		printJSON(dead.List())

	case "clear":
		q, _ := localQueues()
		if err := q.Clear(); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "flush":
		q, dead := localQueues()
		s := clientsync.New(q, dead, authedClient(*addr), zap.NewNop(), 0)
		if err := s.Flush(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "flush stopped:", err)
		}
		fmt.Printf("queued=%d quarantined=%d\n", len(q.List()), len(dead.List()))

	case "requeue":
		fs := flag.NewFlagSet("requeue", flag.ExitOnError)
		key := fs.String("key", "", "idempotency key")
		_ = fs.Parse(flag.Args()[1:])
		if *key == "" {
			fmt.Fprintln(os.Stderr, "need -key")
			os.Exit(1)
		}
		q, dead := localQueues()
		s := clientsync.New(q, dead, remote.New(*addr), zap.NewNop(), 0)
		ok, err := s.Requeue(*key)
		if err != nil {
			fail(err)
		}
		if !ok {
			fail(fmt.Errorf("no quarantined item with key %s", *key))
		}
		fmt.Println("ok")

	case "list":
		actions, err := authedClient(*addr).ListActions(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(actions)

	case "retry":
		fs := flag.NewFlagSet("retry", flag.ExitOnError)
		id := fs.String("id", "", "action id")
		_ = fs.Parse(flag.Args()[1:])
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}
		resp, err := authedClient(*addr).Retry(ctx, strings.TrimSpace(*id))
		if err != nil {
			fail(err)
		}
		printJSON(resp)

	default:
		usage()
	}
}
