package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/boilerio/boilerio/db"
	"github.com/boilerio/boilerio/internal/schedulerweb"
)

func main() {
	DebugCLI()
}

func DebugCLI() {
	var dbPath, command, name, relay, locator, secret string
	var sensorID, deviceID int
	flag.StringVar(&dbPath, "db", "data/schedulerweb.db", "Path to the SQLite database file")
	flag.StringVar(&command, "cmd", "", "Command to run: add-zone, add-sensor, add-device")
	flag.StringVar(&name, "name", "", "Name for the new zone or sensor")
	flag.StringVar(&relay, "relay", "", "Boiler relay ID for the new zone")
	flag.StringVar(&locator, "locator", "", "Bus topic for the new sensor")
	flag.IntVar(&sensorID, "sensor", 0, "Sensor ID to attach to the new zone")
	flag.IntVar(&deviceID, "device", 0, "Device ID for add-device")
	flag.StringVar(&secret, "secret", "", "Device secret for add-device")
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help || command == "" {
		fmt.Println("\nUsage of boilerio-debug:")
		fmt.Println("  -db string\tPath to the SQLite database file (default 'data/schedulerweb.db')")
		fmt.Println("  -cmd string\tCommand to run: add-zone, add-sensor, add-device")
		fmt.Println("  -name string\tName for the new zone or sensor")
		fmt.Println("  -relay string\tBoiler relay ID for the new zone")
		fmt.Println("  -locator string\tBus topic for the new sensor")
		fmt.Println("  -sensor int\tSensor ID to attach to the new zone")
		fmt.Println("  -device int\tDevice ID for add-device")
		fmt.Println("  -secret string\tDevice secret for add-device")
		fmt.Println("  -help\tShow this help message")
		os.Exit(0)
	}

	var err error
	switch command {
	case "add-zone":
		if name == "" || relay == "" {
			fmt.Println("Error: name and relay are required")
			os.Exit(1)
		}
		var id int
		id, err = db.AddZoneCLI(dbPath, name, relay, sensorID)
		if err == nil {
			fmt.Printf("Added zone %d\n", id)
		}
	case "add-sensor":
		if name == "" || locator == "" {
			fmt.Println("Error: name and locator are required")
			os.Exit(1)
		}
		var id int
		id, err = db.AddSensorCLI(dbPath, name, locator)
		if err == nil {
			fmt.Printf("Added sensor %d\n", id)
		}
	case "add-device":
		if deviceID == 0 || secret == "" {
			fmt.Println("Error: device ID and secret are required")
			os.Exit(1)
		}
		var salt, hash string
		salt, err = schedulerweb.NewSalt()
		if err == nil {
			hash, err = schedulerweb.HashSecret(secret, salt)
		}
		if err == nil {
			err = db.AddDeviceCLI(dbPath, deviceID, salt, hash)
		}
	default:
		fmt.Println("Invalid command")
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Command %s failed: %v\n", command, err)
		os.Exit(1)
	}
	fmt.Printf("Command %s completed successfully\n", command)
}
