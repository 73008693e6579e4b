package leave

type CreateLeaveRequest struct {
	LeaveType string  `json:"leaveType" binding:"required"`
	StartDate string  `json:"startDate" binding:"required"`
	EndDate   string  `json:"endDate" binding:"required"`
	TotalDays float64 `json:"totalDays" binding:"required,gt=0"`
	Reason    string  `json:"reason"`
}

type DecideLeaveRequest struct {
	Approved *bool  `json:"approved" binding:"required"`
	Reason   string `json:"reason"`
}

type LeaveRequestResponse struct {
	ID              string  `json:"id"`
	UserID          string  `json:"userId"`
	LeaveType       string  `json:"leaveType"`
	StartDate       string  `json:"startDate"`
	EndDate         string  `json:"endDate"`
	TotalDays       float64 `json:"totalDays"`
	Reason          string  `json:"reason"`
	Status          string  `json:"status"`
	ApprovedBy      *string `json:"approvedBy,omitempty"`
	ApprovedAt      *string `json:"approvedAt,omitempty"`
	RejectionReason *string `json:"rejectionReason,omitempty"`
}

// AdminLeaveRequestResponse is the cross-user list row, joined with the
// requester identity for the admin dashboard.
type AdminLeaveRequestResponse struct {
	LeaveRequestResponse
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar"`
}

type BalanceResponse struct {
	Annual    int `json:"annual"`
	Sick      int `json:"sick"`
	Personal  int `json:"personal"`
	Paternity int `json:"paternity"`
	Maternity int `json:"maternity"`
	Marriage  int `json:"marriage"`
	Death     int `json:"death"`
}
