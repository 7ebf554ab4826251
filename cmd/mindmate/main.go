package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"mindmate/internal/config"
	"mindmate/internal/db"
	"mindmate/pkg/activity"
	"mindmate/pkg/escalation"
	"mindmate/pkg/suggest"
	"mindmate/pkg/task"
	"mindmate/pkg/user"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx := context.Background()
	cfg := config.Load()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		fatal("connect: %v", err)
	}
	defer pool.Close()

	tasks := task.NewPgStore(pool)
	users := user.NewPgStore(pool)
	prompts := escalation.NewPgStore(pool)
	events := activity.NewPgStore(pool)
	engine := suggest.New(tasks, prompts, events)

	switch os.Args[1] {
	case "task":
		handleTask(ctx, tasks, os.Args[2:])
	case "suggest":
		handleSuggest(ctx, engine, os.Args[2:])
	case "escalation":
		handleEscalation(ctx, engine, prompts, os.Args[2:])
	case "activity":
		handleActivity(ctx, events, os.Args[2:])
	case "user":
		handleUser(ctx, users, os.Args[2:])
	case "status":
		handleStatus(ctx, tasks, events)
	case "init":
		handleInit(ctx, tasks, users, prompts, events)
	default:
		usage()
		os.Exit(1)
	}
}

func handleTask(ctx context.Context, store task.Store, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: mindmate task <create|list|get|update|delete>")
		os.Exit(1)
	}

	switch args[0] {
	case "create":
		flags := parseFlags(args[1:])
		title := flags["title"]
		owner := flags["owner"]
		if title == "" || owner == "" {
			fatal("--title and --owner are required")
		}
		t := &task.Task{
			OwnerID:     owner,
			Title:       title,
			Description: flags["description"],
			Category:    flags["category"],
			Energy:      task.Energy(flags["energy"]),
			Priority:    task.Priority(flags["priority"]),
			TimeOfDay:   task.TimeOfDay(flags["time"]),
			ParentID:    flags["parent"],
			DurationMin: intFlag(flags, "duration", 0),
		}
		result, err := store.Create(ctx, t)
		if err != nil {
			fatal("create task: %v", err)
		}
		printJSON(result)

	case "list":
		flags := parseFlags(args[1:])
		owner := flags["owner"]
		if owner == "" {
			fatal("--owner is required")
		}
		tasks, err := store.ByOwner(ctx, owner)
		if err != nil {
			fatal("list tasks: %v", err)
		}
		printJSON(tasks)

	case "get":
		if len(args) < 2 {
			fatal("Usage: mindmate task get <id>")
		}
		t, err := store.Get(ctx, args[1])
		if err != nil {
			fatal("get task: %v", err)
		}
		printJSON(t)

	case "update":
		if len(args) < 2 {
			fatal("Usage: mindmate task update <id> [--title=...] [--energy=...] [--unmute]")
		}
		flags := parseFlags(args[2:])
		updates := make(map[string]any)
		for _, k := range []string{"title", "description", "category", "energy", "priority", "time_of_day"} {
			if v, ok := flags[k]; ok && v != "" {
				updates[k] = v
			}
		}
		if v, ok := flags["duration"]; ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				fatal("parse duration: %v", err)
			}
			updates["duration_min"] = n
		}
		if _, ok := flags["unmute"]; ok {
			updates["is_muted"] = false
		}
		t, err := store.Update(ctx, args[1], updates)
		if err != nil {
			fatal("update task: %v", err)
		}
		printJSON(t)

	case "delete":
		if len(args) < 2 {
			fatal("Usage: mindmate task delete <id>")
		}
		if err := store.Delete(ctx, args[1]); err != nil {
			fatal("delete task: %v", err)
		}
		fmt.Println(`{"status":"deleted"}`)

	default:
		fatal("unknown task command: %s", args[0])
	}
}

func handleSuggest(ctx context.Context, engine *suggest.Engine, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: mindmate suggest <next|accept|reject|mute>")
		os.Exit(1)
	}

	switch args[0] {
	case "next":
		flags := parseFlags(args[1:])
		owner := flags["owner"]
		energy, err := task.ParseEnergy(flags["energy"])
		if err != nil {
			fatal("%v", err)
		}
		if owner == "" {
			fatal("--owner is required")
		}
		candidate, err := engine.Suggest(ctx, owner, energy)
		if err != nil {
			fatal("suggest: %v", err)
		}
		if candidate == nil {
			fmt.Println(`{"status":"all clear","message":"no eligible task at this energy"}`)
			return
		}
		printJSON(candidate)

	case "accept":
		if len(args) < 2 {
			fatal("Usage: mindmate suggest accept <task-id>")
		}
		t, err := engine.Accept(ctx, args[1])
		if err != nil {
			fatal("accept: %v", err)
		}
		printJSON(t)

	case "reject":
		if len(args) < 2 {
			fatal("Usage: mindmate suggest reject <task-id>")
		}
		out, err := engine.Reject(ctx, args[1])
		if err != nil {
			fatal("reject: %v", err)
		}
		printJSON(out)

	case "mute":
		if len(args) < 2 {
			fatal("Usage: mindmate suggest mute <task-id>")
		}
		t, err := engine.Mute(ctx, args[1])
		if err != nil {
			fatal("mute: %v", err)
		}
		printJSON(t)

	default:
		fatal("unknown suggest command: %s", args[0])
	}
}

func handleEscalation(ctx context.Context, engine *suggest.Engine, store escalation.Store, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: mindmate escalation <list|get|resolve>")
		os.Exit(1)
	}

	switch args[0] {
	case "list":
		flags := parseFlags(args[1:])
		owner := flags["owner"]
		if owner == "" {
			fatal("--owner is required")
		}
		if flags["status"] == "open" {
			prompts, err := store.OpenForOwner(ctx, owner)
			if err != nil {
				fatal("list escalations: %v", err)
			}
			printJSON(prompts)
			return
		}
		prompts, err := store.Recent(ctx, owner, intFlag(flags, "limit", 20))
		if err != nil {
			fatal("list escalations: %v", err)
		}
		printJSON(prompts)

	case "get":
		if len(args) < 2 {
			fatal("Usage: mindmate escalation get <id>")
		}
		p, err := store.Get(ctx, args[1])
		if err != nil {
			fatal("get escalation: %v", err)
		}
		printJSON(p)

	case "resolve":
		if len(args) < 3 {
			fatal("Usage: mindmate escalation resolve <id> <muted|kept>")
		}
		p, err := engine.ResolvePrompt(ctx, args[1], args[2])
		if err != nil {
			fatal("resolve escalation: %v", err)
		}
		printJSON(p)

	default:
		fatal("unknown escalation command: %s", args[0])
	}
}

func handleActivity(ctx context.Context, store activity.Store, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: mindmate activity <list|get|verify>")
		os.Exit(1)
	}

	switch args[0] {
	case "list":
		flags := parseFlags(args[1:])
		limit := intFlag(flags, "limit", 20)
		var events []activity.Event
		var err error
		if o := flags["owner"]; o != "" {
			events, err = store.ByOwner(ctx, o, limit)
		} else if t := flags["type"]; t != "" {
			events, err = store.ByType(ctx, t, limit)
		} else {
			events, err = store.Recent(ctx, limit)
		}
		if err != nil {
			fatal("list activity: %v", err)
		}
		printJSON(events)

	case "get":
		if len(args) < 2 {
			fatal("Usage: mindmate activity get <id>")
		}
		e, err := store.Get(ctx, args[1])
		if err != nil {
			fatal("get event: %v", err)
		}
		printJSON(e)

	case "verify":
		if err := store.VerifyChain(ctx); err != nil {
			fatal("chain verification failed: %v", err)
		}
		fmt.Println(`{"status":"ok","message":"hash chain verified"}`)

	default:
		fatal("unknown activity command: %s", args[0])
	}
}

func handleUser(ctx context.Context, store user.Store, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: mindmate user <list|get>")
		os.Exit(1)
	}

	switch args[0] {
	case "list":
		users, err := store.List(ctx)
		if err != nil {
			fatal("list users: %v", err)
		}
		printJSON(users)

	case "get":
		if len(args) < 2 {
			fatal("Usage: mindmate user get <id-or-email>")
		}
		u, err := store.Get(ctx, args[1])
		if err != nil && strings.Contains(args[1], "@") {
			u, err = store.ByEmail(ctx, args[1])
		}
		if err != nil {
			fatal("get user: %v", err)
		}
		printJSON(u)

	default:
		fatal("unknown user command: %s", args[0])
	}
}

func handleStatus(ctx context.Context, tasks task.Store, events activity.Store) {
	taskCount, err := tasks.Count(ctx)
	if err != nil {
		fatal("count tasks: %v", err)
	}
	eventCount, err := events.Count(ctx)
	if err != nil {
		fatal("count events: %v", err)
	}
	printJSON(map[string]any{
		"tasks":  taskCount,
		"events": eventCount,
	})
}

func handleInit(ctx context.Context, tasks task.Store, users user.Store, prompts escalation.Store, events activity.Store) {
	if err := tasks.EnsureTable(ctx); err != nil {
		fatal("tasks table: %v", err)
	}
	if err := users.EnsureTable(ctx); err != nil {
		fatal("users table: %v", err)
	}
	if err := prompts.EnsureTable(ctx); err != nil {
		fatal("escalation table: %v", err)
	}
	if err := events.EnsureTable(ctx); err != nil {
		fatal("activity table: %v", err)
	}
	fmt.Println(`{"status":"ok","message":"tables ready"}`)
}

func parseFlags(args []string) map[string]string {
	flags := make(map[string]string)
	for _, arg := range args {
		if !strings.HasPrefix(arg, "--") {
			continue
		}
		arg = strings.TrimPrefix(arg, "--")
		if idx := strings.Index(arg, "="); idx >= 0 {
			flags[arg[:idx]] = arg[idx+1:]
		} else {
			flags[arg] = ""
		}
	}
	return flags
}

func intFlag(flags map[string]string, key string, defaultVal int) int {
	if v, ok := flags[key]; ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal("encode JSON: %v", err)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "mindmate: "+format+"\n", args...)
	os.Exit(1)
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: mindmate <command>

Commands:
  task        Task operations (create, list, get, update, delete)
  suggest     Suggestion operations (next, accept, reject, mute)
  escalation  Escalation prompt operations (list, get, resolve)
  activity    Activity log operations (list, get, verify)
  user        User operations (list, get)
  status      Show system summary
  init        Initialize database tables`)
}
