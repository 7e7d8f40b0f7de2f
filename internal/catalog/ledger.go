package catalog

// HighReportThreshold marks records that need operator triage.
const HighReportThreshold = 3

// Visible reports whether a record belongs in default public listings.
// It is derived on every read so a later verification un-suppresses a
// record without any explicit unflag step.
func Visible(r Record) bool {
	return r.Counts().Visible()
}

// Visible applies the visibility rule to a bare counter pair.
func (c Counts) Visible() bool {
	return c.Reports <= c.Verifications
}

// HighReports reports whether a record belongs in the admin triage bucket.
func HighReports(r Record) bool {
	return r.ReportCount >= HighReportThreshold
}

// FilterVisible returns the visible subset of records, preserving order.
func FilterVisible(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if Visible(r) {
			out = append(out, r)
		}
	}
	return out
}
