// Command chatcli is a terminal client for the persona chat server. It
// exercises the full client stack: session auth, character selection,
// history pagination, optimistic sends with retry and persistent
// drafts.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ai-persona-chat/client"
	"ai-persona-chat/pkg/logger"
	"ai-persona-chat/pkg/redis"
)

func main() {
	serverURL := flag.String("server", "http://localhost:4000", "chat server base URL")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	register := flag.Bool("register", false, "create the account instead of logging in")
	dataDir := flag.String("data", defaultDataDir(), "local state directory")
	redisAddr := flag.String("redis", "", "redis address for cross-process sync (empty keeps sync in-process)")
	flag.Parse()

	log := logger.New(logger.Config{Level: "warn", JSON: false})

	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: chatcli -email you@example.com -password secret [-register]")
		os.Exit(2)
	}

	if err := run(*serverURL, *email, *password, *register, *dataDir, *redisAddr, log); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chatcli"
	}
	return filepath.Join(home, ".chatcli")
}

func run(serverURL, email, password string, register bool, dataDir, redisAddr string, log *logger.Logger) error {
	ctx := context.Background()

	api, err := client.NewAPI(serverURL, log)
	if err != nil {
		return err
	}

	var user *client.User
	if register {
		user, err = api.Register(ctx, email, password)
	} else {
		user, err = api.Login(ctx, email, password)
	}
	if err != nil {
		return err
	}
	fmt.Printf("signed in as %s\n", user.Email)

	kv, err := client.NewSQLiteKV(filepath.Join(dataDir, "state.db"))
	if err != nil {
		return err
	}
	defer kv.Close()

	bus := newSyncBus(ctx, redisAddr, log)
	defer bus.Close()
	persist := client.NewPersist(kv, bus, user.ID, log)

	characterID, err := pickCharacter(ctx, api, persist)
	if err != nil {
		return err
	}

	store := client.NewStore(api, *characterID)
	controller := client.NewController(api, store, persist, characterID, nil, log)
	defer controller.Close()

	if err := store.LoadInitial(ctx); err != nil {
		return err
	}
	printMessages(store.Messages())

	if draft := persist.LoadDraft(characterID); draft != "" {
		fmt.Printf("(restored draft: %q)\n", draft)
	}

	fmt.Println(`commands: /older loads history, /retry resends the last failed message, /quit exits`)

	scanner := bufio.NewScanner(os.Stdin)
	var lastFailedID string
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "/quit":
			return nil

		case line == "/older":
			if !store.HasMore() {
				fmt.Println("(no older messages)")
				continue
			}
			if err := store.LoadOlder(ctx); err != nil {
				fmt.Println("load failed:", err)
				continue
			}
			printMessages(store.Messages())

		case line == "/retry":
			if lastFailedID == "" {
				fmt.Println("(nothing to retry)")
				continue
			}
			if err := controller.Retry(ctx, lastFailedID); err != nil {
				fmt.Println("retry failed:", err)
				continue
			}
			lastFailedID = ""
			printLast(store.Messages(), 2)

		case line == "":
			continue

		default:
			persist.SaveDraft(characterID, line)
			if err := controller.Send(ctx, line); err != nil {
				fmt.Println("send failed:", err)
				lastFailedID = findLastFailed(store.Messages())
				continue
			}
			printLast(store.Messages(), 1)
		}
	}
}

// newSyncBus joins the cross-tab broadcast channel. With a redis
// address events reach other chatcli processes; without one they stay
// within this process.
func newSyncBus(ctx context.Context, redisAddr string, log *logger.Logger) client.Bus {
	if redisAddr != "" {
		rc, err := redis.NewClient(ctx, redis.Options{Addr: redisAddr})
		if err == nil {
			return client.NewRedisBus(rc, log)
		}
		log.Warn("Redis unavailable, sync stays in-process", "error", err.Error())
	}
	return client.NewMemoryBus().NewEndpoint()
}

func pickCharacter(ctx context.Context, api *client.API, persist *client.Persist) (*uint, error) {
	characters, err := api.ListCharacters(ctx)
	if err != nil {
		return nil, err
	}
	if len(characters) == 0 {
		return nil, fmt.Errorf("no characters available")
	}

	fmt.Println("characters:")
	for _, ch := range characters {
		marker := " "
		if ch.Owned {
			marker = "*"
		}
		fmt.Printf("  %s %d. %s\n", marker, ch.ID, ch.Name)
	}

	prompt := "pick a character id"
	if last := persist.LoadLastCharacter(); last != "" {
		prompt += " (last: " + last + ")"
	}
	fmt.Printf("%s: ", prompt)

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return nil, scanner.Err()
	}
	raw := strings.TrimSpace(scanner.Text())
	if raw == "" {
		raw = persist.LoadLastCharacter()
	}

	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid character id %q", raw)
	}

	persist.SaveLastCharacter(raw)
	characterID := uint(id)
	return &characterID, nil
}

func printMessages(messages []client.ChatMessage) {
	for _, m := range messages {
		printOne(m)
	}
}

func printLast(messages []client.ChatMessage, n int) {
	if len(messages) < n {
		n = len(messages)
	}
	for _, m := range messages[len(messages)-n:] {
		printOne(m)
	}
}

func printOne(m client.ChatMessage) {
	suffix := ""
	switch m.Status {
	case client.StatusPending:
		suffix = " (sending...)"
	case client.StatusFailed:
		suffix = " (failed: " + m.Error + ")"
	}
	fmt.Printf("[%s] %s%s\n", m.Role, m.Content, suffix)
}

func findLastFailed(messages []client.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Status == client.StatusFailed {
			return messages[i].ID
		}
	}
	return ""
}
