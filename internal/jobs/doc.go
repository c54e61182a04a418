// Package jobs defines the domain types shared by every stage of the job
// discovery pipeline together with the small interfaces that let stages be
// swapped out in tests.
package jobs
