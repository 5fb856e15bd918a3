package models

import "time"

// AgeGroup is the coarse personalization bucket used to filter content.
type AgeGroup string

const (
	AgeGroupChild AgeGroup = "child"
	AgeGroupAdult AgeGroup = "adult"
)

// AdultAge is the age, in whole calendar years, from which a user is treated as an adult.
const AdultAge = 22

// AgeGroupFor applies the adult threshold to a birth year and the current calendar year.
func AgeGroupFor(yearOfBirth, currentYear int) AgeGroup {
	if currentYear-yearOfBirth >= AdultAge {
		return AgeGroupAdult
	}
	return AgeGroupChild
}

// DeriveAgeGroup returns nil when the birth year is unknown.
// Signup, sign in and session restore all go through here.
func DeriveAgeGroup(b BirthYear, now time.Time) *AgeGroup {
	if !b.Valid {
		return nil
	}
	g := AgeGroupFor(b.Year, now.Year())
	return &g
}
