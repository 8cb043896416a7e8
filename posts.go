package spacetraveling

import (
	"encoding/json"
	"fmt"

	"github.com/eringen/spacetraveling/cms"
	"github.com/eringen/spacetraveling/format"
	"github.com/eringen/spacetraveling/richtext"
)

type postData struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Author   string `json:"author"`
	Banner   struct {
		URL string `json:"url"`
	} `json:"banner"`
	Content []struct {
		Heading string            `json:"heading"`
		Body    richtext.Document `json:"body"`
	} `json:"content"`
}

// DecodeError reports a document whose data does not fit the post model,
// such as a rich text block of an unsupported type.
type DecodeError struct {
	Type string
	UID  string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s %q: %v", e.Type, e.UID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodePostData(doc cms.Document) (postData, error) {
	var data postData
	if len(doc.Data) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(doc.Data, &data); err != nil {
		return postData{}, &DecodeError{Type: doc.Type, UID: doc.UID, Err: err}
	}
	return data, nil
}

func summaryFromDocument(doc cms.Document) (PostSummary, error) {
	data, err := decodePostData(doc)
	if err != nil {
		return PostSummary{}, err
	}
	return PostSummary{
		UID:                  doc.UID,
		FirstPublicationDate: doc.FirstPublicationDate,
		Title:                data.Title,
		Subtitle:             data.Subtitle,
		Author:               data.Author,
	}, nil
}

// mapSummary maps one raw result of a list page to a PostSummary.
func mapSummary(raw json.RawMessage) (PostSummary, error) {
	var doc cms.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return PostSummary{}, err
	}
	return summaryFromDocument(doc)
}

func postFromDocument(doc cms.Document) (Post, error) {
	data, err := decodePostData(doc)
	if err != nil {
		return Post{}, err
	}
	post := Post{
		UID:                  doc.UID,
		FirstPublicationDate: doc.FirstPublicationDate,
		Title:                data.Title,
		Subtitle:             data.Subtitle,
		BannerURL:            data.Banner.URL,
		Author:               data.Author,
		Content:              make([]Section, 0, len(data.Content)),
	}
	for _, s := range data.Content {
		post.Content = append(post.Content, Section{Heading: s.Heading, Body: s.Body})
	}
	return post, nil
}

// WordCount counts the words of every section heading and body.
func WordCount(sections []Section) int {
	words := 0
	for _, s := range sections {
		words += format.CountWords(s.Heading)
		words += format.CountWords(s.Body.PlainText())
	}
	return words
}

// ReadingTime estimates how long sections take to read, as a display label.
func ReadingTime(sections []Section, loc format.Locale) string {
	return format.ReadingTime(WordCount(sections), loc)
}
