package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thatrasunil/code-connect/config"
	"github.com/thatrasunil/code-connect/globals"
	"github.com/thatrasunil/code-connect/store"
	"github.com/thatrasunil/code-connect/types"
)

// A very simple CLI tool for the administration of code-connect rooms.

var (
	configPath string

	roomStore store.RoomStore
	cfg       *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "code-connect-admin",
		Short: "administer code-connect rooms",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			flagSet := config.GetFlagSet()
			pflag.CommandLine.AddFlagSet(flagSet)
			var err error
			cfg, err = config.ReadConfiguration(configPath, flagSet)
			if err != nil {
				return err
			}
			if cfg.LogLevel != "" {
				globals.AppLogger.SetLevel(hclog.LevelFromString(cfg.LogLevel))
			}
			roomStore, err = store.NewRoomStore(cfg)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if roomStore != nil {
				roomStore.Close()
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file or directory")

	roomsCmd := &cobra.Command{
		Use:   "rooms",
		Short: "list all rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := storeCtx()
			defer cancel()
			rooms, err := roomStore.Rooms(ctx)
			if err != nil {
				return err
			}
			for _, room := range rooms {
				visibility := "public"
				if !room.IsPublic {
					visibility = "private"
				}
				fmt.Printf("%s\t%s\t%s\t%d bytes\n", room.RoomId, visibility, room.Language, len(room.Code))
			}
			return nil
		},
	}

	roomCreateCmd := &cobra.Command{
		Use:   "create [room-id]",
		Short: "create a room, optionally private; generates a shareable id when omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, _ := cmd.Flags().GetString("password")
			owner, _ := cmd.Flags().GetString("owner")
			var roomId string
			if len(args) > 0 {
				roomId = args[0]
			} else {
				roomId = uuid.NewString()[:8]
			}
			ctx, cancel := storeCtx()
			defer cancel()
			room := &types.Room{
				RoomId:   roomId,
				Language: cfg.Language(),
				IsPublic: password == "",
				Password: password,
				OwnerId:  owner,
			}
			if err := roomStore.SaveRoom(ctx, room); err != nil {
				return err
			}
			fmt.Println(roomId)
			return nil
		},
	}
	roomCreateCmd.Flags().String("password", "", "password (makes the room private)")
	roomCreateCmd.Flags().String("owner", "", "owner user id")

	roomEndCmd := &cobra.Command{
		Use:   "end <room-id>",
		Short: "purge a room's messages and reset its document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := storeCtx()
			defer cancel()
			if err := roomStore.PurgeMessages(ctx, args[0]); err != nil {
				return err
			}
			return roomStore.WriteDocument(ctx, args[0], "", cfg.Language())
		},
	}

	roomShowCmd := &cobra.Command{
		Use:   "show <room-id>",
		Short: "print a room's document and message count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := storeCtx()
			defer cancel()
			code, language, err := roomStore.ReadDocument(ctx, args[0])
			if err != nil {
				return err
			}
			messages, err := roomStore.ListMessages(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("language: %s\nmessages: %d\n---\n%s\n", language, len(messages), code)
			return nil
		},
	}

	rootCmd.AddCommand(roomsCmd, roomCreateCmd, roomEndCmd, roomShowCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}
