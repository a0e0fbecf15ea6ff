package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"quadtrack/host/config"
	"quadtrack/host/mcu"
	"quadtrack/host/serial"
)

var (
	configPath = flag.String("config", "quadtrack.yml", "Encoder configuration file")
	device     = flag.String("device", "", "Serial device path (overrides the config file)")
	verbose    = flag.Bool("verbose", false, "Enable verbose output")
)

// Sampling starts this many ticks after the clock read so the firmware
// sees query_encoder before its first wake time.
const startDelayTicks = 100000

func main() {
	flag.Parse()
	log.SetPrefix("[quadtrack] ")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}

	conn := mcu.NewMCU()
	if *verbose {
		conn.SetLogger(log.New(os.Stderr, "[mcu] ", log.LstdFlags))
	}

	log.Printf("connecting to %s", cfg.Serial.Device)
	err = conn.ConnectWithConfig(&serial.Config{
		Device:      cfg.Serial.Device,
		Baud:        cfg.Serial.Baud,
		ReadTimeout: cfg.Serial.ReadTimeout,
	})
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	if err := conn.RetrieveDictionary(); err != nil {
		log.Fatalf("failed to retrieve dictionary: %v", err)
	}
	if err := startEncoders(conn, cfg); err != nil {
		log.Fatalf("failed to configure encoders: %v", err)
	}

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "quit", "exit", "q":
			return
		case "help", "?":
			printHelp()
		case "dict":
			conn.PrintDictionary(os.Stdout)
		case "pos":
			showPositions(conn, cfg, parts[1:])
		case "zero":
			if len(parts) != 2 {
				fmt.Println("usage: zero <encoder>")
				continue
			}
			enc, ok := cfg.Encoder(parts[1])
			if !ok {
				fmt.Printf("Unknown encoder: %s\n", parts[1])
				continue
			}
			if err := conn.ZeroEncoder(uint8(enc.OID)); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		case "reports":
			for _, r := range conn.DrainReports() {
				fmt.Printf("oid=%d clock=%d position=%d delta=%d\n", r.OID, r.Clock, r.Position, r.Delta)
			}
		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", parts[0])
		}
	}

	if err := scanner.Err(); err != nil {
		log.Fatalf("error reading input: %v", err)
	}
}

// startEncoders configures every encoder and starts periodic reports
func startEncoders(conn *mcu.MCU, cfg *config.Config) error {
	clock, err := conn.GetClock()
	if err != nil {
		return err
	}
	for _, enc := range cfg.Encoders {
		if err := conn.ConfigEncoder(uint8(enc.OID), uint8(enc.Counter), enc.Period); err != nil {
			return fmt.Errorf("%s: %w", enc.Name, err)
		}
		if err := conn.QueryEncoder(uint8(enc.OID), clock+startDelayTicks, enc.RestTicks()); err != nil {
			return fmt.Errorf("%s: %w", enc.Name, err)
		}
		log.Printf("encoder %s: oid=%d counter=%d every %v", enc.Name, enc.OID, enc.Counter, enc.SampleInterval)
	}
	return nil
}

func showPositions(conn *mcu.MCU, cfg *config.Config, names []string) {
	encoders := cfg.Encoders
	if len(names) > 0 {
		encoders = nil
		for _, name := range names {
			enc, ok := cfg.Encoder(name)
			if !ok {
				fmt.Printf("Unknown encoder: %s\n", name)
				continue
			}
			encoders = append(encoders, enc)
		}
	}

	for _, enc := range encoders {
		if err := conn.RequestPosition(uint8(enc.OID)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", enc.Name, err)
			continue
		}
		pos, _ := conn.Position(uint8(enc.OID))
		fmt.Printf("%-12s %d\n", enc.Name, pos)
	}
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  pos [name...]  - Show encoder positions")
	fmt.Println("  zero <name>    - Zero an encoder")
	fmt.Println("  reports        - Print and clear queued periodic reports")
	fmt.Println("  dict           - Print dictionary summary")
	fmt.Println("  help           - Show this help message")
	fmt.Println("  quit/exit/q    - Exit the program")
	fmt.Println()
}
