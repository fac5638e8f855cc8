package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/redis/go-redis/v9"

	"peerline/backend/internal/models"
	"peerline/backend/internal/storage"
)

type adminConfig struct {
	DatabaseDSN   string `env:"DATABASE_DSN,required=true"`
	RedisAddr     string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`
}

const usage = `Usage: admin <command> [args]

Commands:
  rooms        list active rooms
  room <id>    show one room
  watch        print room lifecycle events as they happen`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	_ = godotenv.Load()
	var cfg adminConfig
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.OpenPostgres(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal(err)
	}
	var rdb *redis.Client
	// only watch needs redis
	if os.Args[1] == "watch" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	}
	svc := storage.NewStorageService(db, rdb)
	defer svc.Close()

	switch os.Args[1] {
	case "rooms":
		err = listRooms(ctx, svc, os.Stdout)
	case "room":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin room <room_id>")
			os.Exit(1)
		}
		err = showRoom(ctx, svc, os.Args[2], os.Stdout)
	case "watch":
		err = watch(ctx, svc, os.Stdout)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	return table
}

func listRooms(ctx context.Context, svc *storage.Service, w io.Writer) error {
	rooms, err := svc.ListActiveRooms(ctx)
	if err != nil {
		return err
	}
	table := newTable(w, "Seq", "Room", "Seeker", "Helper", "Opened")
	for _, r := range rooms {
		table.Append([]string{
			strconv.FormatInt(r.Sequence, 10),
			r.RoomID,
			r.SeekerID,
			r.HelperID,
			r.CreatedAt.Format(time.RFC3339),
		})
	}
	table.Render()
	fmt.Fprintf(w, "%d active room(s)\n", len(rooms))
	return nil
}

// showRoom prints room metadata and the message count. Message content is
// never printed.
func showRoom(ctx context.Context, svc *storage.Service, roomID string, w io.Writer) error {
	room, err := svc.GetRoom(ctx, roomID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("room %s not found", roomID)
	}
	if err != nil {
		return err
	}
	msgs, err := svc.ListMessages(ctx, roomID)
	if err != nil {
		return err
	}

	ended := "-"
	if room.EndedAt != nil {
		ended = room.EndedAt.Format(time.RFC3339)
	}
	table := newTable(w, "Field", "Value")
	table.AppendBulk([][]string{
		{"room", room.RoomID},
		{"sequence", strconv.FormatInt(room.Sequence, 10)},
		{"status", string(room.Status)},
		{"seeker", room.SeekerID},
		{"helper", room.HelperID},
		{"opened", room.CreatedAt.Format(time.RFC3339)},
		{"ended", ended},
		{"messages", strconv.Itoa(len(msgs))},
	})
	table.Render()
	return nil
}

func watch(ctx context.Context, svc *storage.Service, w io.Writer) error {
	sub := svc.SubscribeRoomEvents(ctx)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", storage.LifecycleChannel, err)
	}
	fmt.Fprintf(w, "watching %s, ctrl-c to stop\n", storage.LifecycleChannel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			evt, err := storage.DecodeRoomEvent(msg.Payload)
			if err != nil {
				fmt.Fprintf(w, "undecodable event: %v\n", err)
				continue
			}
			fmt.Fprintln(w, styleFor(evt.Type).Render(formatEvent(evt)))
		}
	}
}

func styleFor(eventType string) color.Style {
	if eventType == models.RoomEventEnded {
		return color.New(color.FgRed)
	}
	return color.New(color.FgGreen)
}

func formatEvent(evt models.RoomEvent) string {
	return fmt.Sprintf("%s  %-12s  #%d  %s", evt.At.Format(time.RFC3339), evt.Type, evt.Sequence, evt.RoomID)
}
