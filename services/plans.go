package services

import (
	"strings"

	"flyrpro/models"
)

const (
	SeatsFree = 1
	SeatsPro  = 1
	SeatsTeam = 10
)

func GetSeatLimit(plan string) int {
	switch strings.ToLower(plan) {
	case models.PlanTeam:
		return SeatsTeam
	case models.PlanPro:
		return SeatsPro
	case models.PlanFree:
		return SeatsFree
	default:
		// Default to Free limit for unknown plans or empty strings
		return SeatsFree
	}
}

// IsPaidPlan reports whether a plan can be purchased through checkout.
func IsPaidPlan(plan string) bool {
	p := strings.ToLower(plan)
	return p == models.PlanPro || p == models.PlanTeam
}
