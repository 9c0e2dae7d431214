package forecast

// NotLoadedError indicates a forecast was requested before any series was loaded
type NotLoadedError struct{}

func (NotLoadedError) Error() string {
	return "no series loaded: load the quarterly index before forecasting"
}
