package service

import "aeriegateway/internal/view/model"

// SelectLatest picks the view to show username by default from candidates
// ordered most recently updated first: the newest view the user owns, else
// the newest system view, else nil.
func SelectLatest(username string, candidates []model.View) *model.View {
	var userViews, systemViews []model.View
	for _, v := range candidates {
		switch v.Meta.Owner {
		case username:
			userViews = append(userViews, v)
		case model.SystemOwner:
			systemViews = append(systemViews, v)
		}
	}

	if len(userViews) > 0 {
		return &userViews[0]
	}
	if len(systemViews) > 0 {
		return &systemViews[0]
	}
	return nil
}
