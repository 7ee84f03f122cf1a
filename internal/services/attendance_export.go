package services

import (
	"io"
	"strings"

	"camp-ops-backend/internal/models"
	"camp-ops-backend/internal/utils"
)

var attendanceExportHeader = []string{
	"Registration", "Guardian", "Phone", "Child", "Camp", "Session",
	"Payment", "Status", "Checked In", "Checked Out", "Checked In By", "Note",
}

// AttendanceExportRows flattens the expected list into CSV rows. It reads nothing
// beyond the entries themselves.
func AttendanceExportRows(entries []ExpectedEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		var in, out, by, note string
		if a := e.Attendance; a != nil {
			in = a.CheckInTime.Format("15:04")
			if a.CheckOutTime != nil {
				out = a.CheckOutTime.Format("15:04")
			}
			by = a.CheckedInBy
			note = a.CheckOutNote
		}
		rows = append(rows, []string{
			e.RegistrationNumber,
			e.GuardianName,
			e.GuardianPhone,
			e.Child.Name,
			e.CampType,
			e.Session,
			e.PaymentStatus,
			stateLabel(e.State),
			in,
			out,
			by,
			note,
		})
	}
	return rows
}

func WriteAttendanceCSV(w io.Writer, entries []ExpectedEntry) error {
	return utils.WriteCSV(w, attendanceExportHeader, AttendanceExportRows(entries))
}

func stateLabel(s models.AttendanceState) string {
	return strings.ReplaceAll(string(s), "_", " ")
}
