// Command copctl inspects the COP database produced by a squad run:
// the operating picture itself, the message audit trail and the agent
// event log.
//
// Usage:
//
//	copctl show-cop [-db cop.db]
//	copctl show-messages [-db cop.db] [-limit 50] [-sender ROLE]
//	copctl show-events [-db cop.db] [-limit 50] [-agent ROLE]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/hupe1980/agentsquad/cop"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	command := os.Args[1]
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	dbPath := fs.String("db", "cop.db", "COP database path")
	limit := fs.Int("limit", 50, "maximum entries to show")
	sender := fs.String("sender", "", "filter messages by sender")
	agentRole := fs.String("agent", "", "filter events by agent role")
	fs.Parse(os.Args[2:])

	store, err := cop.Open(*dbPath)
	if err != nil {
		log.Fatalf("open cop store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	switch command {
	case "show-cop":
		err = showCOP(ctx, store)
	case "show-messages":
		err = showMessages(ctx, store, *limit, *sender)
	case "show-events":
		err = showEvents(ctx, store, *limit, *agentRole)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: copctl <command> [options]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  show-cop         Show the Common Operating Picture")
	fmt.Fprintln(os.Stderr, "  show-messages    Show the message audit trail")
	fmt.Fprintln(os.Stderr, "  show-events      Show the agent event log")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Options:")
	fmt.Fprintln(os.Stderr, "  -db PATH         Database path (default: cop.db)")
	fmt.Fprintln(os.Stderr, "  -limit N         Maximum entries to show (default: 50)")
	fmt.Fprintln(os.Stderr, "  -sender ROLE     Filter messages by sender")
	fmt.Fprintln(os.Stderr, "  -agent ROLE      Filter events by agent role")
}

func showCOP(ctx context.Context, store *cop.Store) error {
	rule := strings.Repeat("=", 80)
	sub := strings.Repeat("-", 80)

	fmt.Println(rule)
	fmt.Println("COMMON OPERATING PICTURE")
	fmt.Println(rule)
	fmt.Println()

	drones, err := store.Drones(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("DRONES (%d):\n%s\n", len(drones), sub)
	for _, d := range drones {
		task := d.CurrentTask
		if task == "" {
			task = "None"
		}
		fmt.Printf("  ID: %s\n", d.ID)
		fmt.Printf("    Position: (%.4f, %.4f) @ %.0fm\n", d.Lat, d.Lon, d.Altitude)
		fmt.Printf("    Fuel: %.1f%%\n", d.FuelPercent)
		fmt.Printf("    Sensors: %s\n", d.SensorStatus)
		fmt.Printf("    Current Task: %s\n", task)
		if d.LastUpdated > 0 {
			fmt.Printf("    Last Updated: %s\n", formatEpoch(d.LastUpdated))
		}
		fmt.Println()
	}

	entities, err := store.Entities(ctx, cop.EntityFilter{})
	if err != nil {
		return err
	}
	fmt.Printf("ENTITIES (%d):\n%s\n", len(entities), sub)
	shown := entities
	if len(shown) > 20 {
		shown = shown[:20]
	}
	for _, e := range shown {
		fmt.Printf("  #%d - %s\n", e.ID, e.Type)
		fmt.Printf("    Position: (%.4f, %.4f)\n", e.Lat, e.Lon)
		fmt.Printf("    Confidence: %.2f\n", e.Confidence)
		fmt.Printf("    Detected By: %s\n", e.DetectedBy)
		if e.DetectedAt > 0 {
			fmt.Printf("    Detected At: %s\n", formatEpoch(e.DetectedAt))
		}
		if e.Description != "" {
			fmt.Printf("    Description: %s\n", e.Description)
		}
		fmt.Println()
	}
	if len(entities) > 20 {
		fmt.Printf("  ... and %d more entities\n\n", len(entities)-20)
	}

	tasks, err := store.CollectionTasks(ctx, cop.TaskFilter{})
	if err != nil {
		return err
	}
	fmt.Printf("COLLECTION TASKS (%d):\n%s\n", len(tasks), sub)
	for _, t := range tasks {
		fmt.Printf("  Task #%d - %s\n", t.ID, t.TaskType)
		fmt.Printf("    Drone: %s\n", t.DroneID)
		fmt.Printf("    Target Area: %s\n", t.TargetArea)
		fmt.Printf("    Priority: %d\n", t.Priority)
		fmt.Printf("    Status: %s\n", t.Status)
		fmt.Printf("    Created By: %s\n", t.CreatedBy)
		if t.CreatedAt > 0 {
			fmt.Printf("    Created At: %s\n", formatEpoch(t.CreatedAt))
		}
		fmt.Println()
	}

	plans, err := store.MissionPlans(ctx, "")
	if err != nil {
		return err
	}
	fmt.Printf("MISSION PLANS (%d):\n%s\n", len(plans), sub)
	for _, p := range plans {
		fmt.Printf("  Plan #%d - %s\n", p.ID, p.Name)
		fmt.Printf("    Status: %s\n", p.Status)
		fmt.Printf("    Objectives: %s\n", p.Objectives)
		fmt.Printf("    Assigned Drones: %s\n", strings.Join(p.AssignedDrones, ", "))
		fmt.Printf("    Created By: %s\n", p.CreatedBy)
		if p.CreatedAt > 0 {
			fmt.Printf("    Created At: %s\n", formatEpoch(p.CreatedAt))
		}
		if p.UpdatedAt > 0 {
			fmt.Printf("    Updated At: %s\n", formatEpoch(p.UpdatedAt))
		}
		fmt.Println()
	}

	return nil
}

func showMessages(ctx context.Context, store *cop.Store, limit int, sender string) error {
	messages, err := store.MessageHistory(ctx, limit, sender)
	if err != nil {
		return err
	}

	rule := strings.Repeat("=", 80)
	fmt.Println(rule)
	fmt.Printf("MESSAGE HISTORY (showing %d messages)\n", len(messages))
	if sender != "" {
		fmt.Printf("Filtered by sender: %s\n", sender)
	}
	fmt.Println(rule)
	fmt.Println()

	for _, m := range messages {
		fmt.Printf("[%s] %s -> %s\n", formatEpoch(m.Timestamp), m.Sender, m.Recipient)
		fmt.Printf("  Type: %s\n", m.MessageType)
		content := m.Content
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		fmt.Printf("  Content: %s\n", content)
		if len(m.Metadata) > 0 {
			fmt.Printf("  Metadata: %v\n", m.Metadata)
		}
		fmt.Println()
	}

	return nil
}

func showEvents(ctx context.Context, store *cop.Store, limit int, agentRole string) error {
	events, err := store.EventLog(ctx, limit, agentRole)
	if err != nil {
		return err
	}

	rule := strings.Repeat("=", 80)
	fmt.Println(rule)
	fmt.Printf("EVENT LOG (showing %d events)\n", len(events))
	if agentRole != "" {
		fmt.Printf("Filtered by agent: %s\n", agentRole)
	}
	fmt.Println(rule)
	fmt.Println()

	for _, e := range events {
		fmt.Printf("[%s] %s - %s\n", formatEpoch(e.Timestamp), e.AgentRole, e.EventType)
		fmt.Printf("  %s\n", e.Description)
		if len(e.Data) > 0 {
			pretty, err := json.MarshalIndent(e.Data, "  ", "    ")
			if err == nil {
				fmt.Printf("  Data: %s\n", pretty)
			} else {
				fmt.Printf("  Data: %v\n", e.Data)
			}
		}
		fmt.Println()
	}

	return nil
}

func formatEpoch(ts float64) string {
	return time.Unix(int64(ts), 0).Format("2006-01-02 15:04:05")
}
