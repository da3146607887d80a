package entity

// Renderer draws read-only copies of simulation entities
type Renderer interface {
	RenderVehicle(v VehicleState)
	RenderTarget(t Target)
	RenderHazard(h Hazard)
	Clear()
	Present()
}
