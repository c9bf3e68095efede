package attendance

import (
	"context"
	"time"
)

// Overview holds the administrator dashboard aggregates.
type Overview struct {
	TotalSessions  int             `json:"total_sessions"`
	ActiveSessions int             `json:"active_sessions"`
	TotalStudents  int             `json:"total_students"`
	TotalRecords   int             `json:"total_records"`
	LateRecords    int             `json:"late_records"`
	AttendanceRate float64         `json:"attendance_rate"`
	Subjects       []SubjectMetric `json:"subjects"`
}

// SubjectMetric is the per-subject slice of the overview.
type SubjectMetric struct {
	SubjectName    string  `json:"subject_name"`
	TotalSessions  int     `json:"total_sessions"`
	TotalRecords   int     `json:"total_records"`
	AttendanceRate float64 `json:"attendance_rate"`
}

// BuildOverview computes the dashboard aggregates with read-only queries.
func (r *Repository) BuildOverview(ctx context.Context, now time.Time) (Overview, error) {
	var ov Overview

	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sessions),
			(SELECT COUNT(*) FROM sessions WHERE is_active AND end_time >= $1),
			(SELECT COUNT(*) FROM users WHERE role = 'student'),
			(SELECT COUNT(*) FROM attendance),
			(SELECT COUNT(*) FROM attendance WHERE status = 'late')
	`, now).Scan(&ov.TotalSessions, &ov.ActiveSessions, &ov.TotalStudents,
		&ov.TotalRecords, &ov.LateRecords)
	if err != nil {
		return Overview{}, err
	}

	// Rate over expected seats: accepted records versus student-session
	// pairs for sessions that have started.
	var expected int
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) * (SELECT COUNT(*) FROM users WHERE role = 'student')
		FROM sessions WHERE start_time <= $1
	`, now).Scan(&expected)
	if err != nil {
		return Overview{}, err
	}
	if expected > 0 {
		ov.AttendanceRate = float64(ov.TotalRecords) / float64(expected) * 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT s.subject_name,
			COUNT(DISTINCT s.id),
			COUNT(a.id),
			CASE WHEN COUNT(DISTINCT s.id) > 0
				THEN COUNT(a.id)::float / COUNT(DISTINCT s.id)
				ELSE 0 END
		FROM sessions s
		LEFT JOIN attendance a ON a.session_id = s.id
		GROUP BY s.subject_name
		ORDER BY s.subject_name
	`)
	if err != nil {
		return Overview{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var m SubjectMetric
		var avgPerSession float64
		if err := rows.Scan(&m.SubjectName, &m.TotalSessions, &m.TotalRecords, &avgPerSession); err != nil {
			return Overview{}, err
		}
		if ov.TotalStudents > 0 {
			m.AttendanceRate = avgPerSession / float64(ov.TotalStudents) * 100
		}
		ov.Subjects = append(ov.Subjects, m)
	}
	return ov, rows.Err()
}
