package export

import "seriate/storage"

// Media types for the rendered formats.
const (
	MimeCalendar = "text/calendar; charset=utf-8"
	MimeXCal     = "application/calendar+xml; charset=utf-8"
)

// Document is one rendered feed ready for delivery.
type Document struct {
	Key         string
	ContentType string
	Data        []byte
}

// Documents renders every published format for the series: <slug>.ics
// and <slug>.xcal.
func Documents(series *storage.SeriesRecord, instances []*storage.InstanceRecord) ([]Document, error) {
	ics, err := ICS(series, instances)
	if err != nil {
		return nil, err
	}
	xcal, err := XCal(series, instances)
	if err != nil {
		return nil, err
	}
	return []Document{
		{Key: series.Slug + ".ics", ContentType: MimeCalendar, Data: ics},
		{Key: series.Slug + ".xcal", ContentType: MimeXCal, Data: xcal},
	}, nil
}
