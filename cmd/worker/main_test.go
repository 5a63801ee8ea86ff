package main

import (
	"testing"

	"hashfund/internal/escrow"

	"github.com/stretchr/testify/assert"
)

func TestMessageFor(t *testing.T) {
	assert.Equal(t, "New investment of 100 HBAR in Open Hardware Synth",
		messageFor(escrow.FundEvent{Kind: escrow.EventInvestmentRecorded, ProjectTitle: "Open Hardware Synth", Amount: 100, Currency: "HBAR"}))

	assert.Equal(t, "Milestone payout of 300 HBAR released for Open Hardware Synth",
		messageFor(escrow.FundEvent{Kind: escrow.EventMilestonePaid, ProjectTitle: "Open Hardware Synth", Amount: 300, Currency: "HBAR"}))

	assert.Equal(t, "Investment of 50 HBAR in project #7 was refunded",
		messageFor(escrow.FundEvent{Kind: escrow.EventInvestmentRefunded, ProjectID: 7, Amount: 50, Currency: "HBAR"}))

	assert.Equal(t, "Fund activity on project #7",
		messageFor(escrow.FundEvent{Kind: "something.else", ProjectID: 7}))
}
