// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The Glowgrid Project

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"

	"github.com/glowgrid/floorbus/pkg/master"
)

var (
	bridgeBroker   string
	bridgeClientID string
	bridgeTopic    string
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Bridge the floor bus to an MQTT broker",
	Long: `Relay between the floor bus and MQTT.

Touch events from streaming nodes are published to <topic>/event/<addr>
with payload "touch" or "release". Commands are accepted on:

  <topic>/color/<dest>   payload "r,g,b"
  <topic>/fade/<dest>    payload "r,g,b,units"
  <topic>/reset/<dest>   any payload

where <dest> is an address, a range like 2-8, or *.

Example:
  floorbus --port /dev/ttyUSB0 bridge --broker tcp://broker.local:1883`,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.Flags().StringVar(&bridgeBroker, "broker", "", "MQTT broker URL (tcp://host:port)")
	bridgeCmd.Flags().StringVar(&bridgeClientID, "client-id", "floorbus-bridge", "MQTT client ID")
	bridgeCmd.Flags().StringVar(&bridgeTopic, "topic", "floor", "MQTT topic prefix")
}

// bridgeCommand is one MQTT-originated bus command, executed on the
// bridge loop because the controller is not safe for concurrent use.
type bridgeCommand struct {
	action string
	dest   string
	body   string
}

func runBridge(cmd *cobra.Command, args []string) error {
	broker := bridgeBroker
	if broker == "" {
		broker = loadedConfig.MQTT.Broker
	}
	if broker == "" {
		return fmt.Errorf("--broker or mqtt.broker in the config file is required")
	}
	if loadedConfig.MQTT.ClientID != "" && !cmd.Flags().Changed("client-id") {
		bridgeClientID = loadedConfig.MQTT.ClientID
	}
	if loadedConfig.MQTT.Topic != "" && !cmd.Flags().Changed("topic") {
		bridgeTopic = loadedConfig.MQTT.Topic
	}

	m, conn, connInfo, err := openMaster()
	if err != nil {
		return err
	}
	defer conn.Close()

	commands := make(chan bridgeCommand, 64)

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(bridgeClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	opts.OnConnect = func(client mqtt.Client) {
		topic := bridgeTopic + "/+/+"
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			parts := strings.Split(msg.Topic(), "/")
			if len(parts) != 3 {
				return
			}
			select {
			case commands <- bridgeCommand{action: parts[1], dest: parts[2], body: string(msg.Payload())}:
			default:
				log.Printf("command queue full, dropping %s", msg.Topic())
			}
		})
		if token.Wait() && token.Error() != nil {
			log.Printf("subscribe %s: %v", topic, token.Error())
		}
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect to broker %s: %w", broker, token.Error())
	}
	defer client.Disconnect(250)

	fmt.Printf("Floorbus - MQTT Bridge\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Broker: %s (topic prefix %q)\n", broker, bridgeTopic)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return nil

		case c := <-commands:
			if err := executeBridgeCommand(m, c); err != nil {
				log.Printf("%s/%s: %v", c.action, c.dest, err)
			}

		case <-ticker.C:
			m.Poll()
			for _, ev := range m.Events() {
				payload := "release"
				if ev.Status.Touched {
					payload = "touch"
				}
				topic := fmt.Sprintf("%s/event/%d", bridgeTopic, ev.Status.Addr)
				client.Publish(topic, 0, false, payload)
			}
		}
	}
}

func executeBridgeCommand(m *master.Master, c bridgeCommand) error {
	dest, err := parseDest(c.dest)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch c.action {
	case "color":
		parts := strings.Split(c.body, ",")
		if len(parts) != 3 {
			return fmt.Errorf("expected r,g,b payload, got %q", c.body)
		}
		col, err := parseColor(parts[0], parts[1], parts[2])
		if err != nil {
			return err
		}
		return m.SetColor(ctx, dest, col)

	case "fade":
		parts := strings.Split(c.body, ",")
		if len(parts) != 4 {
			return fmt.Errorf("expected r,g,b,units payload, got %q", c.body)
		}
		col, err := parseColor(parts[0], parts[1], parts[2])
		if err != nil {
			return err
		}
		units, err := parseByte(parts[3])
		if err != nil {
			return err
		}
		return m.SetFade(ctx, dest, col, units)

	case "reset":
		return m.Reset(ctx, dest)

	case "event":
		// Our own publications echoed back by the wildcard subscription.
		return nil

	default:
		return fmt.Errorf("unknown action %q", c.action)
	}
}
