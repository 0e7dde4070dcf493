package app

import (
	"sort"

	"srp-quiz-service/internal/config"
	"srp-quiz-service/internal/domain"
	"srp-quiz-service/internal/itempool"
	"srp-quiz-service/internal/mastery"
)

// Catalog maps weeks to their ordered topics and resolves per-topic mastery goals.
type Catalog struct {
	weeks       map[int][]string
	labels      map[string]string
	defaultGoal int
	topicGoals  map[string]int
	weekGoals   map[int]map[string]int
}

// NewCatalog builds a catalog from the quiz section of the config.
func NewCatalog(q config.Quiz) Catalog {
	c := Catalog{
		weeks:       make(map[int][]string, len(q.Weeks)),
		labels:      make(map[string]string, len(q.Labels)),
		defaultGoal: q.Mastery.Default,
		topicGoals:  make(map[string]int, len(q.Mastery.Topics)),
		weekGoals:   make(map[int]map[string]int, len(q.Mastery.Weeks)),
	}
	if c.defaultGoal < 1 {
		c.defaultGoal = mastery.DefaultGoal
	}
	for week, topics := range q.Weeks {
		norm := make([]string, 0, len(topics))
		for _, t := range topics {
			if t := itempool.NormalizeTopic(t); t != "" {
				norm = append(norm, t)
			}
		}
		if len(norm) > 0 {
			c.weeks[week] = norm
		}
	}
	for topic, label := range q.Labels {
		c.labels[itempool.NormalizeTopic(topic)] = label
	}
	for topic, goal := range q.Mastery.Topics {
		c.topicGoals[itempool.NormalizeTopic(topic)] = goal
	}
	for week, goals := range q.Mastery.Weeks {
		m := make(map[string]int, len(goals))
		for topic, goal := range goals {
			m[itempool.NormalizeTopic(topic)] = goal
		}
		c.weekGoals[week] = m
	}
	return c
}

// Topics returns a copy of the ordered topic queue for a week.
func (c Catalog) Topics(week int) []string {
	return append([]string(nil), c.weeks[week]...)
}

// Weeks lists configured weeks in ascending order.
func (c Catalog) Weeks() []int {
	out := make([]int, 0, len(c.weeks))
	for w := range c.weeks {
		out = append(out, w)
	}
	sort.Ints(out)
	return out
}

// Goal resolves the mastery goal: week override, then topic, then default.
func (c Catalog) Goal(week int, topic string) int {
	if g, ok := c.weekGoals[week][topic]; ok && g >= 1 {
		return g
	}
	if g, ok := c.topicGoals[topic]; ok && g >= 1 {
		return g
	}
	return c.defaultGoal
}

// Label is the display name of a topic.
func (c Catalog) Label(topic string) string {
	if l, ok := c.labels[topic]; ok {
		return l
	}
	return topic
}

// Validate checks the start parameters of a session.
func (c Catalog) Validate(studentID string, week int) error {
	if !domain.ValidStudentID(studentID) {
		return domain.ErrInvalidStudentID
	}
	if len(c.weeks[week]) == 0 {
		return domain.ErrInvalidWeek
	}
	return nil
}
