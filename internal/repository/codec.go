package repository

import (
	"bytes"
	"embed"
	"fmt"
	"math"
	"strconv"

	"github.com/matheus3301/jobboard/internal/identity"
	"github.com/matheus3301/jobboard/internal/model"
	"github.com/matheus3301/jobboard/internal/remote"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	jobSchema     = mustSchema("job.json")
	userSchema    = mustSchema("user.json")
	messageSchema = mustSchema("message.json")
)

func mustSchema(name string) *jsonschema.Schema {
	raw, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		panic(err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("schema %s: %v", name, err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("schema %s: %v", name, err))
	}
	return c.MustCompile(name)
}

// Remote documents keep the field names of the mobile client that created
// them: description travels as "resume" and offer as "weOffer", and user
// references are decimal strings.

func jobDocument(j model.Job) map[string]any {
	cur := j.Currency
	if cur == "" {
		cur = model.DefaultCurrency
	}
	d := map[string]any{
		"title":             j.Title,
		"salaryCurrency":    cur,
		"experience":        j.Experience,
		"resume":            j.Description,
		"city":              j.City,
		"aboutUs":           j.AboutUs,
		"requiredQualities": j.RequiredQualities,
		"weOffer":           j.Offer,
		"keySkills":         j.KeySkills,
		"employerId":        strconv.FormatInt(j.EmployerID, 10),
		"createdAt":         j.CreatedAt,
	}
	if j.SalaryFrom != nil {
		d["salaryFrom"] = *j.SalaryFrom
	}
	if j.SalaryTo != nil {
		d["salaryTo"] = *j.SalaryTo
	}
	return d
}

// decodeJob turns a remote document into a job keyed by RemoteKey(doc.ID).
func decodeJob(doc remote.Document) (model.Job, error) {
	if err := jobSchema.Validate(doc.Data); err != nil {
		return model.Job{}, fmt.Errorf("job %s: %w", doc.ID, err)
	}
	employer, err := refField(doc.Data, "employerId")
	if err != nil {
		return model.Job{}, fmt.Errorf("job %s: %w", doc.ID, err)
	}
	j := model.Job{
		ID:                identity.RemoteKey(doc.ID),
		Title:             strField(doc.Data, "title"),
		Currency:          strField(doc.Data, "salaryCurrency"),
		Experience:        strField(doc.Data, "experience"),
		Description:       strField(doc.Data, "resume"),
		City:              strField(doc.Data, "city"),
		AboutUs:           strField(doc.Data, "aboutUs"),
		RequiredQualities: strField(doc.Data, "requiredQualities"),
		Offer:             strField(doc.Data, "weOffer"),
		KeySkills:         strField(doc.Data, "keySkills"),
		EmployerID:        employer,
		CreatedAt:         int64(numField(doc.Data, "createdAt")),
	}
	if j.Currency == "" {
		j.Currency = model.DefaultCurrency
	}
	if v, ok := optNumField(doc.Data, "salaryFrom"); ok {
		j.SalaryFrom = model.Salary(int(v))
	}
	if v, ok := optNumField(doc.Data, "salaryTo"); ok {
		j.SalaryTo = model.Salary(int(v))
	}
	return j, nil
}

func userDocument(u model.User) map[string]any {
	return map[string]any{
		"firstName":       u.FirstName,
		"lastName":        u.LastName,
		"middleName":      u.MiddleName,
		"email":           model.Normalize(u.Email),
		"phone":           u.Phone,
		"username":        model.Normalize(u.Username),
		"password":        u.Password,
		"profilePhotoId":  u.PhotoID,
		"profilePhotoUrl": u.PhotoURL,
	}
}

func decodeUser(doc remote.Document) (model.User, error) {
	if err := userSchema.Validate(doc.Data); err != nil {
		return model.User{}, fmt.Errorf("user %s: %w", doc.ID, err)
	}
	u := model.User{
		ID:         identity.RemoteKey(doc.ID),
		FirstName:  strField(doc.Data, "firstName"),
		LastName:   strField(doc.Data, "lastName"),
		MiddleName: strField(doc.Data, "middleName"),
		Email:      strField(doc.Data, "email"),
		Phone:      strField(doc.Data, "phone"),
		Username:   strField(doc.Data, "username"),
		Password:   strField(doc.Data, "password"),
		PhotoID:    int(numField(doc.Data, "profilePhotoId")),
		PhotoURL:   strField(doc.Data, "profilePhotoUrl"),
	}
	return u.Normalized(), nil
}

func messageDocument(m model.Message) map[string]any {
	return map[string]any{
		"senderId":   strconv.FormatInt(m.SenderID, 10),
		"receiverId": strconv.FormatInt(m.ReceiverID, 10),
		"text":       m.Text,
		"timestamp":  m.Timestamp,
	}
}

func decodeMessage(doc remote.Document) (model.Message, error) {
	if err := messageSchema.Validate(doc.Data); err != nil {
		return model.Message{}, fmt.Errorf("message %s: %w", doc.ID, err)
	}
	sender, err := refField(doc.Data, "senderId")
	if err != nil {
		return model.Message{}, fmt.Errorf("message %s: %w", doc.ID, err)
	}
	receiver, err := refField(doc.Data, "receiverId")
	if err != nil {
		return model.Message{}, fmt.Errorf("message %s: %w", doc.ID, err)
	}
	return model.Message{
		ID:         identity.RemoteKey(doc.ID),
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       strField(doc.Data, "text"),
		Timestamp:  int64(numField(doc.Data, "timestamp")),
	}, nil
}

func ref(id int64) string {
	return strconv.FormatInt(id, 10)
}

func strField(d map[string]any, key string) string {
	s, _ := d[key].(string)
	return s
}

func numField(d map[string]any, key string) float64 {
	v, _ := optNumField(d, key)
	return v
}

func optNumField(d map[string]any, key string) (float64, bool) {
	switch v := d[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// refField reads a user reference stored as a decimal string or a number.
func refField(d map[string]any, key string) (int64, error) {
	switch v := d[key].(type) {
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return id, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%s: %v is not an integer", key, v)
		}
		return int64(v), nil
	}
	return 0, fmt.Errorf("%s: missing", key)
}
