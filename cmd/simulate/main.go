package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"
)

// simulate fires concurrent check-ins and bookings at a running
// api-server and verifies the numbering invariants from the outside:
// every queue number in a (date, doctor) bucket distinct and contiguous,
// double-booked slots rejected.

type result struct {
	queueNumber int
	status      int
	latency     time.Duration
	err         error
}

func main() {
	baseURL := flag.String("url", "http://127.0.0.1:8080", "api-server base URL")
	workers := flag.Int("workers", 25, "concurrent check-in workers")
	doctorRef := flag.Int64("doctor", 0, "doctor bucket to target (0 = unassigned)")
	patients := flag.Int("patients", 25, "seeded patients to check in (PT-000001..)")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Str("service", "simulate").Logger()

	gofakeit.Seed(time.Now().UnixNano())
	date := time.Now().Format("2006-01-02")

	log.Info().Int("workers", *workers).Int64("doctor", *doctorRef).Msg("starting check-in storm")

	results := make([]result, *workers)
	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			code := fmt.Sprintf("PT-%06d", (n%*patients)+1)
			results[n] = checkIn(*baseURL, code, *doctorRef, date)
		}(i)
	}
	wg.Wait()

	report(log, results)

	if *doctorRef != 0 {
		probeDoubleBooking(log, *baseURL, *doctorRef, date)
	}
}

func checkIn(baseURL, patientRef string, doctorRef int64, date string) result {
	body, _ := json.Marshal(map[string]any{
		"patient_ref": patientRef,
		"doctor_ref":  doctorRef,
		"queue_date":  date,
	})

	start := time.Now()
	resp, err := http.Post(baseURL+"/queue/check-in", "application/json", bytes.NewReader(body))
	if err != nil {
		return result{err: err, latency: time.Since(start)}
	}
	defer resp.Body.Close()

	res := result{status: resp.StatusCode, latency: time.Since(start)}
	if resp.StatusCode == http.StatusCreated {
		var out struct {
			QueueNumber int `json:"queue_number"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			res.err = err
			return res
		}
		res.queueNumber = out.QueueNumber
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return res
}

func report(log zerolog.Logger, results []result) {
	var numbers []int
	var failures int
	var totalLatency time.Duration

	for _, r := range results {
		totalLatency += r.latency
		if r.err != nil || r.status != http.StatusCreated {
			failures++
			continue
		}
		numbers = append(numbers, r.queueNumber)
	}

	sort.Ints(numbers)

	distinct := true
	contiguous := true
	for i := 1; i < len(numbers); i++ {
		if numbers[i] == numbers[i-1] {
			distinct = false
		}
		if numbers[i] != numbers[i-1]+1 {
			contiguous = false
		}
	}

	avg := time.Duration(0)
	if len(results) > 0 {
		avg = totalLatency / time.Duration(len(results))
	}

	log.Info().
		Int("succeeded", len(numbers)).
		Int("failed", failures).
		Bool("numbers_distinct", distinct).
		Bool("numbers_contiguous", contiguous).
		Dur("avg_latency", avg).
		Msg("check-in storm finished")

	if !distinct {
		log.Error().Ints("numbers", numbers).Msg("duplicate queue numbers allocated")
		os.Exit(1)
	}
}

func probeDoubleBooking(log zerolog.Logger, baseURL string, doctorRef int64, date string) {
	book := func(patientRef string) int {
		body, _ := json.Marshal(map[string]any{
			"patient_ref": patientRef,
			"doctor_ref":  doctorRef,
			"date":        date,
			"time":        "09:00",
		})
		resp, err := http.Post(baseURL+"/appointments", "application/json", bytes.NewReader(body))
		if err != nil {
			log.Error().Err(err).Msg("booking probe failed")
			return 0
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode
	}

	first := book("PT-000001")
	second := book("PT-000002")

	ok := first == http.StatusCreated && second == http.StatusUnprocessableEntity
	log.Info().
		Int("first_status", first).
		Int("second_status", second).
		Bool("conflict_detected", ok).
		Msg("double-booking probe finished")

	if !ok {
		os.Exit(1)
	}
}
