package export

import (
	"fmt"

	"github.com/beevik/etree"

	"seriate/caldate"
	"seriate/storage"
)

// xCalNS is the iCalendar-in-XML namespace (RFC 6321).
const xCalNS = "urn:ietf:params:xml:ns:icalendar-2.0"

// XCalDocument builds the xCal form of the feed.
func XCalDocument(series *storage.SeriesRecord, instances []*storage.InstanceRecord) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	icalendar := doc.CreateElement("icalendar")
	icalendar.CreateAttr("xmlns", xCalNS)
	vcalendar := icalendar.CreateElement("vcalendar")

	props := vcalendar.CreateElement("properties")
	addTextProp(props, "prodid", prodID)
	addTextProp(props, "version", "2.0")
	addTextProp(props, "x-wr-calname", series.Title)

	components := vcalendar.CreateElement("components")
	for _, inst := range instances {
		if err := addVEvent(components, inst); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// XCal encodes the feed for serving as application/calendar+xml.
func XCal(series *storage.SeriesRecord, instances []*storage.InstanceRecord) ([]byte, error) {
	doc, err := XCalDocument(series, instances)
	if err != nil {
		return nil, err
	}
	doc.Indent(2)
	return doc.WriteToBytes()
}

func addVEvent(components *etree.Element, inst *storage.InstanceRecord) error {
	date, err := caldate.Parse(inst.InstanceDate)
	if err != nil {
		return fmt.Errorf("instance %s: %w", inst.ID, err)
	}

	vevent := components.CreateElement("vevent")
	props := vevent.CreateElement("properties")
	addTextProp(props, "uid", inst.ID+"@seriate")

	dtstamp := props.CreateElement("dtstamp")
	dtstamp.CreateElement("date-time").SetText(recordStamp(inst.Modified).UTC().Format("2006-01-02T15:04:05Z"))

	addDateProp(props, "dtstart", date)
	addDateProp(props, "dtend", date.AddDays(1))
	addTextProp(props, "summary", inst.Title)
	if inst.Description != "" {
		addTextProp(props, "description", inst.Description)
	}
	if inst.Location != "" {
		addTextProp(props, "location", inst.Location)
	}
	return nil
}

func addTextProp(parent *etree.Element, name, value string) {
	parent.CreateElement(name).CreateElement("text").SetText(value)
}

// xCal date values use the XSD dashed form.
func addDateProp(parent *etree.Element, name string, d caldate.Date) {
	parent.CreateElement(name).CreateElement("date").SetText(d.String())
}
