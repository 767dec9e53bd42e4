package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/mpx-bridge/internal/bus"
	"github.com/sweeney/mpx-bridge/internal/logic"
	"github.com/sweeney/mpx-bridge/internal/mqtt"
	"github.com/sweeney/mpx-bridge/internal/status"
	"github.com/sweeney/mpx-bridge/internal/web"
)

// commandQueue bounds key requests waiting for the bus.
const commandQueue = 16

type runFlags struct {
	poll      time.Duration
	broker    string
	clientID  string
	heartbeat time.Duration
	httpAddr  string
	payload   string
}

func newRunCmd(bf *busFlags) *cobra.Command {
	rf := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Bridge bus events to MQTT",
		Long: `Run the bridge daemon.

Events are published to ` + mqtt.Topic + `, lifecycle and heartbeat
messages to ` + mqtt.TopicSystem + `. Key commands received on
` + mqtt.TopicKeys + ` are transmitted on the bus, e.g.
  {"key":"ZONA_OUT"}  {"keys":"1234"}  ZONA_IN`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(bf, rf)
		},
	}

	f := cmd.Flags()
	f.DurationVar(&rf.poll, "poll", 50*time.Millisecond, "bus queue polling interval")
	f.StringVar(&rf.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	f.StringVar(&rf.clientID, "client-id", mqtt.DefaultClientID, "MQTT client ID")
	f.DurationVar(&rf.heartbeat, "heartbeat", 15*time.Minute, "heartbeat interval (0 to disable)")
	f.StringVar(&rf.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	f.StringVar(&rf.payload, "payload", string(mqtt.FormatJSON), "event payload encoding (json or cbor)")
	return cmd
}

func run(bf *busFlags, rf *runFlags) error {
	format, err := mqtt.ParseFormat(rf.payload)
	if err != nil {
		return err
	}
	if rf.poll <= 0 {
		return fmt.Errorf("--poll must be positive, got %v", rf.poll)
	}

	ctrl, stop, err := bf.startBus()
	if err != nil {
		return err
	}
	defer stop()

	commands := make(chan mqtt.Command, commandQueue)
	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:   rf.broker,
		ClientID: rf.clientID,
		Format:   format,
		OnCommand: func(c mqtt.Command) {
			select {
			case commands <- c:
			default:
				log.Printf("command queue full, dropping %s", c)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Tracker exists before STARTUP so the snapshot is available.
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      rf.poll.Milliseconds(),
		HeartbeatMs: rf.heartbeat.Milliseconds(),
		Broker:      rf.broker,
		HTTPPort:    rf.httpAddr,
		Payload:     string(format),
		Backend:     bf.backend,
		RxPin:       bf.rxPin,
		TxPin:       bf.txPin,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.SetMQTTConnected(publisher.IsConnected())

	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	var hub *web.Hub
	if rf.httpAddr != "" {
		hub = web.NewHub()
		srv := web.New(rf.httpAddr, tracker, hub)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", rf.httpAddr)
	}

	log.Printf("started: backend=%s rx=%d tx=%d poll=%v broker=%s heartbeat=%v payload=%s",
		bf.backend, bf.rxPin, bf.txPin, rf.poll, rf.broker, rf.heartbeat, format)

	ticker := time.NewTicker(rf.poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctrl, publisher, publisher, tracker, hub, rf.heartbeat, time.Now, ticker.C, commands, sigCh)
}

// runLoop owns the controller's polling context: every tick drains the word
// queue, and key commands are transmitted between ticks. It returns after
// publishing SHUTDOWN when a signal arrives.
func runLoop(ctrl *bus.Controller, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, hub *web.Hub, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, commands <-chan mqtt.Command, sig <-chan os.Signal) error {
	lastHeartbeat := now()

	// The word observer runs just before the event observer for the same
	// word, so lastWord is the code behind each event.
	var lastWord logic.Word
	var pending []logic.Event
	var pendingWords []logic.Word
	ctrl.OnWord(func(w logic.Word, valid bool) {
		if valid {
			lastWord = w
		}
	})
	ctrl.OnEvent(func(e logic.Event) {
		pending = append(pending, e)
		pendingWords = append(pendingWords, lastWord)
	})
	defer ctrl.OnEvent(nil)
	defer ctrl.OnWord(nil)

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				tracker.SetTraffic(traffic(ctrl.Stats()))
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case cmd := <-commands:
			if err := execute(ctrl, cmd); err != nil {
				log.Printf("command %s failed: %v", cmd, err)
				continue
			}
			log.Printf("sent %s", cmd)

		case <-tick:
			t := now()
			ctrl.Poll(0)

			for i, e := range pending {
				msg := mqtt.Message{Timestamp: t, Event: e, Word: pendingWords[i]}
				log.Printf("event: %s (%s)", msg.Event, msg.Word)
				if tracker != nil {
					tracker.RecordEvent(msg.Event, msg.Word, msg.Timestamp)
				}
				if err := publisher.Publish(msg); err != nil {
					log.Printf("publish error: %v", err)
				}
				if hub != nil {
					if payload, err := mqtt.FormatPayload(msg); err == nil {
						hub.Broadcast(payload)
					}
				}
			}
			pending = pending[:0]
			pendingWords = pendingWords[:0]

			if tracker != nil {
				tracker.SetTraffic(traffic(ctrl.Stats()))
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}

			if heartbeat <= 0 || t.Sub(lastHeartbeat) < heartbeat {
				continue
			}
			lastHeartbeat = t

			hb := mqtt.SystemEvent{Timestamp: t, Event: "HEARTBEAT"}
			if tracker != nil {
				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
				snap := tracker.Snapshot()
				log.Printf("heartbeat: uptime=%v events=%d words=%d invalid=%d sent=%d",
					snap.Uptime().Truncate(time.Second), snap.Counts.Total(),
					snap.Traffic.Words, snap.Traffic.Invalid, snap.Traffic.Sent)
				hb.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
			}
			if err := publisher.PublishSystem(hb); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}
		}
	}
}

// execute transmits a key command.
func execute(ctrl *bus.Controller, cmd mqtt.Command) error {
	if cmd.Digits != "" {
		return ctrl.SendKeys(cmd.Digits)
	}
	return ctrl.SendKey(cmd.Key)
}

func traffic(s bus.Stats) status.Traffic {
	return status.Traffic{
		Words:   s.Words,
		Invalid: s.Invalid,
		Dropped: s.Dropped,
		Sent:    s.Sent,
	}
}
