package enums

import "fmt"

// RequisitionStatus records whether a submission has been split into orders.
type RequisitionStatus string

const (
	RequisitionStatusCreated   RequisitionStatus = "created"
	RequisitionStatusProcessed RequisitionStatus = "processed"
)

var validRequisitionStatuses = []RequisitionStatus{
	RequisitionStatusCreated,
	RequisitionStatusProcessed,
}

func (s RequisitionStatus) String() string {
	return string(s)
}

func (s RequisitionStatus) IsValid() bool {
	for _, candidate := range validRequisitionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseRequisitionStatus(value string) (RequisitionStatus, error) {
	for _, candidate := range validRequisitionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid requisition status %q", value)
}
