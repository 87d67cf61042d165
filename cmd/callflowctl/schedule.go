package main

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	schedcron "callflow/backend/internal/schedule/cron"
	scheduledomain "callflow/backend/internal/schedule/domain"
)

// scheduleFile is the YAML layout read by cron and availability:
//
//	timezone: America/New_York
//	utcOffset: "-05:00"
//	hours:
//	  - day: monday
//	    isActive: true
//	    slots: [{from: "09:00", to: "17:00"}]
type scheduleFile struct {
	Timezone  string                        `yaml:"timezone"`
	UTCOffset string                        `yaml:"utcOffset"`
	Hours     scheduledomain.WeeklySchedule `yaml:"hours"`
}

func readSchedule(path string) (*scheduleFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s scheduleFile
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &s, nil
}

func (s *scheduleFile) location() (*time.Location, error) {
	if s.Timezone != "" {
		return time.LoadLocation(s.Timezone)
	}
	if s.UTCOffset != "" {
		return scheduledomain.ParseUTCOffset(s.UTCOffset)
	}
	return time.UTC, nil
}

func newCronCmd() *cobra.Command {
	var (
		file      string
		frequency int
		next      int
	)
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Print the cron expressions generated from business hours",
		Long: `Reads a schedule YAML and prints one cron expression per line, exactly as the
Schedule Trigger registers them. With --next, also prints the upcoming fire times.

Example:
  callflowctl cron --file schedule.yaml --frequency 15 --next 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := readSchedule(file)
			if err != nil {
				return err
			}
			exprs := schedcron.CreateCronIntervals(s.Hours, frequency)
			if len(exprs) == 0 {
				return scheduledomain.ErrNoWorkingHours
			}
			out := cmd.OutOrStdout()
			for _, e := range exprs {
				fmt.Fprintln(out, e)
			}
			if next <= 0 {
				return nil
			}
			loc, err := s.location()
			if err != nil {
				return err
			}
			times, err := nextFires(exprs, time.Now(), loc, next)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			for _, t := range times {
				fmt.Fprintln(out, t.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Schedule YAML file")
	cmd.Flags().IntVar(&frequency, "frequency", 1, "Minutes between fires inside a slot")
	cmd.Flags().IntVar(&next, "next", 0, "Number of upcoming fire times to print")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// nextFires merges the next n activations of every expression, earliest first.
func nextFires(exprs []string, from time.Time, loc *time.Location, n int) ([]time.Time, error) {
	var all []time.Time
	for _, e := range exprs {
		ts, err := schedcron.Next(e, from, loc, n)
		if err != nil {
			return nil, err
		}
		all = append(all, ts...)
	}
	slices.SortFunc(all, func(a, b time.Time) int { return a.Compare(b) })
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}

func newAvailabilityCmd() *cobra.Command {
	var (
		file string
		at   string
	)
	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Check whether business hours cover a moment",
		Long: `Prints "available" or "unavailable" for --at (RFC 3339, default now), using the
schedule's utcOffset the same way the Call Processor does.

Example:
  callflowctl availability --file schedule.yaml --at 2024-07-01T14:00:00Z`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := readSchedule(file)
			if err != nil {
				return err
			}
			moment := time.Now()
			if at != "" {
				if moment, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("--at: %w", err)
				}
			}
			result := "unavailable"
			if scheduledomain.IsAvailable(s.Hours, moment, s.UTCOffset) {
				result = "available"
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Schedule YAML file")
	cmd.Flags().StringVar(&at, "at", "", "Moment to check (RFC 3339)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
