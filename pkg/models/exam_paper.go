package models

import (
	"encoding/json"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// ExamPaper is the structured exam document produced by the generation
// service and persisted to the exam_papers collection.
type ExamPaper struct {
	InfrontPage   InfrontPage   `json:"infront_page" bson:"infront_page"`
	QuestionsData QuestionsData `json:"questions_data" bson:"questions_data"`
}

// InfrontPage holds the cover-page metadata of a generated paper.
type InfrontPage struct {
	Title                string `json:"title" bson:"title"`
	Subject              string `json:"subject" bson:"subject"`
	TotalMarks           int    `json:"total_marks" bson:"total_marks"`
	ExamTime             string `json:"exam_time" bson:"exam_time"`
	Description          string `json:"description" bson:"description"`
	SecondaryDescription string `json:"secondary_description" bson:"secondary_description"`
}

// QuestionSection is one section of the paper. Child declares how many
// questions the section contains and must match len(Questions).
type QuestionSection struct {
	Title     string            `json:"title" bson:"title"`
	Child     int               `json:"child" bson:"child"`
	Questions map[string]string `json:"questions" bson:"questions"`
}

// QuestionsData carries the section count plus one QuestionSection per
// "section_*" key of the model's JSON reply. The section keys are dynamic
// (section_a, section_b, ...), so marshaling is implemented by hand.
type QuestionsData struct {
	NumOfSection int
	Sections     map[string]QuestionSection
}

// SectionKeys returns the section keys in stable lexical order.
func (q QuestionsData) SectionKeys() []string {
	keys := make([]string, 0, len(q.Sections))
	for k := range q.Sections {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (q *QuestionsData) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["num_of_section"]; ok {
		if err := json.Unmarshal(v, &q.NumOfSection); err != nil {
			return err
		}
	}
	q.Sections = make(map[string]QuestionSection)
	for key, v := range raw {
		if !strings.HasPrefix(key, "section_") {
			continue
		}
		var section QuestionSection
		if err := json.Unmarshal(v, &section); err != nil {
			return err
		}
		q.Sections[key] = section
	}
	return nil
}

func (q QuestionsData) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(q.Sections)+1)
	out["num_of_section"] = q.NumOfSection
	for key, section := range q.Sections {
		out[key] = section
	}
	return json.Marshal(out)
}

// MarshalBSON keeps the dynamic section keys when the paper is inserted
// into MongoDB, mirroring the JSON shape field for field.
func (q QuestionsData) MarshalBSON() ([]byte, error) {
	doc := bson.D{{Key: "num_of_section", Value: q.NumOfSection}}
	for _, key := range q.SectionKeys() {
		doc = append(doc, bson.E{Key: key, Value: q.Sections[key]})
	}
	return bson.Marshal(doc)
}

func (q *QuestionsData) UnmarshalBSON(data []byte) error {
	var raw bson.M
	if err := bson.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["num_of_section"]; ok {
		switch n := v.(type) {
		case int32:
			q.NumOfSection = int(n)
		case int64:
			q.NumOfSection = int(n)
		case float64:
			q.NumOfSection = int(n)
		}
	}
	q.Sections = make(map[string]QuestionSection)
	for key, v := range raw {
		if !strings.HasPrefix(key, "section_") {
			continue
		}
		sectionBytes, err := bson.Marshal(v)
		if err != nil {
			return err
		}
		var section QuestionSection
		if err := bson.Unmarshal(sectionBytes, &section); err != nil {
			return err
		}
		q.Sections[key] = section
	}
	return nil
}
