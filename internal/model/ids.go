package model

import "github.com/google/uuid"

// NewTicketID mints a new random ticket identifier.
func NewTicketID() string { return "tkt_" + uuid.NewString() }

// NewCalibrationID mints a new random calibration-version identifier.
func NewCalibrationID() string { return "cal_" + uuid.NewString() }
