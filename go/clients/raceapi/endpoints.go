package raceapi

const (
	// Endpoints
	RaceLanesEndpoint          = "/get_race_lanes/"
	PitLaneDetailEndpoint      = "/pitlanedetail/%d/"
	StopGoPenaltiesEndpoint    = "/api/round/%d/stop-go-penalties/"
	PenaltyQueueStatusEndpoint = "/api/round/%d/penalty-queue-status/"
	QueuePenaltyEndpoint       = "/api/queue-penalty/"
	ServePenaltyEndpoint       = "/api/serve-penalty/"
	CancelPenaltyEndpoint      = "/api/cancel-penalty/"
	DelayPenaltyEndpoint       = "/api/delay-penalty/"

	// Headers
	CSRFTokenHeader      = "X-CSRFToken"
	RequestedWithHeader  = "X-Requested-With"
	RequestedWithValue   = "XMLHttpRequest"
	ContentTypeHeader    = "Content-Type"
	ContentTypeJSONValue = "application/json"
)
