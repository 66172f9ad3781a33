package http

import (
	"time"

	"minshare/internal/core"
)

// statusResponse is a period status with the values derived from it.
type statusResponse struct {
	Status   core.PeriodStatus  `json:"status"`
	Surplus  core.Money         `json:"surplus"`
	Metrics  core.Metrics       `json:"metrics"`
	Activity []core.Transaction `json:"activity"`
	Target   string             `json:"allocationLabel,omitempty"`
}

func newStatusResponse(st core.PeriodStatus, now time.Time) statusResponse {
	resp := statusResponse{
		Status:   st,
		Surplus:  st.Surplus(),
		Metrics:  core.ComputeMetrics(st, now),
		Activity: st.TransactionsNewestFirst(),
	}
	if st.HasAllocation() {
		resp.Target = st.Target().Label()
	}
	return resp
}
