// Command telemetry-gen emits synthetic agent telemetry over UDP so a
// full trial can be exercised end-to-end without the flight stack.
//
// It simulates a simple scripted flight: all agents climb to the takeoff
// altitude, an assignment event fires, the raw planner goals decay to
// zero (convergence), with an optional gridlock burst in between.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"math"
	"net"
	"strings"
	"time"

	"github.com/banshee-data/formation.report/internal/telemetry"
)

func main() {
	target := flag.String("target", "127.0.0.1:14550", "supervisor telemetry address")
	agentsFlag := flag.String("agents", "SQ01s,SQ02s", "comma-separated agent ids")
	rate := flag.Int("rate", 50, "telemetry rate per agent (Hz)")
	altitude := flag.Float64("altitude", 1.0, "takeoff altitude (m)")
	climbSecs := flag.Float64("climb", 2.0, "seconds to reach altitude")
	convergeSecs := flag.Float64("converge", 5.0, "seconds for planner goals to decay to zero")
	gridlockSecs := flag.Float64("gridlock", 0, "seconds of avoidance-active burst after assignment (0 to disable)")
	assignEvery := flag.Float64("assign-every", 6.0, "seconds between assignment events after the climb")
	flag.Parse()

	agents := strings.Split(*agentsFlag, ",")

	conn, err := net.Dial("udp", *target)
	if err != nil {
		log.Fatalf("failed to dial supervisor: %v", err)
	}
	defer conn.Close()

	send := func(msg telemetry.Message) {
		payload, err := json.Marshal(msg)
		if err != nil {
			log.Fatalf("failed to marshal message: %v", err)
		}
		if _, err := conn.Write(payload); err != nil {
			log.Printf("send failed: %v", err)
		}
	}

	period := time.Second / time.Duration(*rate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	log.Printf("streaming telemetry for %d agents to %s at %d Hz", len(agents), *target, *rate)

	var lastAssignment float64
	start := time.Now()
	for now := range ticker.C {
		t := now.Sub(start).Seconds()

		// altitude ramp, then hold
		z := *altitude * math.Min(t / *climbSecs, 1)

		// planner goal speed decays to zero after the climb
		speed := 0.0
		if t > *climbSecs {
			speed = 2.0 * math.Exp(-(t-*climbSecs) / (*convergeSecs / 3))
		}

		inGridlock := *gridlockSecs > 0 && t > *climbSecs && t < *climbSecs+*gridlockSecs

		for i, a := range agents {
			phase := float64(i) * 2 * math.Pi / float64(len(agents))
			send(telemetry.Message{
				Agent: a, Kind: telemetry.KindState,
				X: math.Cos(phase), Y: math.Sin(phase), Z: z,
				StampNanos: now.UnixNano(),
			})
			send(telemetry.Message{
				Agent: a, Kind: telemetry.KindRawGoal,
				X: speed * math.Cos(phase), Y: speed * math.Sin(phase),
			})
			send(telemetry.Message{
				Agent: a, Kind: telemetry.KindSafeGoal,
				X: speed * math.Cos(phase) * 0.5, Y: speed * math.Sin(phase) * 0.5,
			})
			send(telemetry.Message{
				Agent: a, Kind: telemetry.KindStatus,
				AvoidanceActive: inGridlock,
			})
		}

		// periodic assignment events once the climb completes, so each
		// formation cycle the supervisor requests gets answered
		if t > *climbSecs+0.5 && t-lastAssignment >= *assignEvery {
			send(telemetry.Message{Kind: telemetry.KindAssignment})
			lastAssignment = t
			log.Print("assignment event sent")
		}
	}
}
