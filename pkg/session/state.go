package session

// AdmissionState tracks the lifecycle of a participant's membership,
// independent per join.
type AdmissionState string

const (
	AdmissionRequested AdmissionState = "requested"
	AdmittedPlain      AdmissionState = "admitted"
	AdmittedElevated   AdmissionState = "elevated"
	AdmissionLeft      AdmissionState = "left"
)

// FloorState is the session-global speaking-floor occupancy.
type FloorState string

const (
	FloorFree FloorState = "free"
	FloorHeld FloorState = "held"
)
