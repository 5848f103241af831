package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-lightdesk/config"
	"go-lightdesk/midi"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "watch":
		if len(os.Args) < 3 {
			usage()
			return
		}
		watch(os.Args[2])
	case "poll":
		pollDevices()
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI probe")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list          - List MIDI input ports and their configured mappings")
	fmt.Println("  watch <name>  - Print control changes from ports matching name")
	fmt.Println("  poll          - Poll for device changes")
}

// ports lists input ports, giving up after 3 seconds
func ports() ([]string, bool) {
	ch := make(chan []string, 1)
	go func() {
		ch <- midi.InPorts()
	}()

	select {
	case names := <-ch:
		return names, true
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! MIDI driver is hung.")
		return nil, false
	}
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config: %v (showing ports only)\n", err)
		cfg = nil
	}

	names, ok := ports()
	if !ok {
		return
	}
	for i, name := range names {
		fmt.Printf("  %d: %s%s\n", i, name, describe(cfg, name))
	}
}

// describe reports the configured controller a port would bind to
func describe(cfg *config.Config, port string) string {
	if cfg == nil {
		return ""
	}
	ctrl := cfg.FindController(port)
	if ctrl == nil {
		return "  (not configured)"
	}
	auto := ""
	if !ctrl.AutoConnect {
		auto = ", manual"
	}
	return fmt.Sprintf("  -> %s (%d mappings%s)", ctrl.PortName, len(ctrl.Mappings), auto)
}

func watch(match string) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	names, ok := ports()
	if !ok {
		return
	}

	var ctrls []*midi.FaderController
	for _, name := range names {
		if !strings.Contains(strings.ToLower(name), strings.ToLower(match)) {
			continue
		}
		fc, err := midi.OpenFaderController(name)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Printf("Listening on %s\n", name)
		ctrls = append(ctrls, fc)
	}
	if len(ctrls) == 0 {
		fmt.Printf("No input matching %q\n", match)
		return
	}

	events := make(chan midi.CCEvent, 64)
	for _, fc := range ctrls {
		fc := fc
		go func() {
			for ev := range fc.CCEvents() {
				events <- ev
			}
		}()
	}

	fmt.Println("Move a control. Ctrl+C to exit.")
	for {
		select {
		case ev := <-events:
			fmt.Printf("[%s] %-24s ch:%2d cc:%3d value:%3d -> dmx %3d\n",
				time.Now().Format("15:04:05.000"), ev.Controller, ev.Channel, ev.CC, ev.Value, midi.Scale(ev.Value))
		case <-stop:
			for _, fc := range ctrls {
				fc.Close()
			}
			return
		}
	}
}

func pollDevices() {
	fmt.Println("Polling for device changes every 2 seconds...")
	fmt.Println("Connect/disconnect controllers to test. Ctrl+C to exit.")

	last := ""
	for {
		names, ok := ports()
		if ok {
			current := strings.Join(names, ",")
			if current != last {
				fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
				fmt.Printf("  Inputs: %v\n", names)
				last = current
			}
		}
		time.Sleep(2 * time.Second)
	}
}
