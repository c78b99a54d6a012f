package models

// QueryDescriptor определяет логический живой запрос к удаленному хранилищу.
// Пустой ReportedBy означает все инциденты.
type QueryDescriptor struct {
	ReportedBy string
}

// Key - строковый ключ запроса; одинаковые ключи разделяют одну подписку
func (q QueryDescriptor) Key() string {
	if q.ReportedBy == "" {
		return "all"
	}
	return "reporter:" + q.ReportedBy
}

// Matches сообщает, входит ли инцидент в результат запроса
func (q QueryDescriptor) Matches(incident *Incident) bool {
	return q.ReportedBy == "" || incident.ReportedBy == q.ReportedBy
}

// FeedEvent - событие живого канала: полный текущий набор либо ошибка
type FeedEvent struct {
	Incidents []*Incident
	Err       error
}
