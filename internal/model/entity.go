package model

// GetID and SetID implementations satisfy the generic resource's entity
// constraint.

func (c *Customer) GetID() uint     { return c.ID }
func (a *Address) GetID() uint      { return a.ID }
func (p *Phone) GetID() uint        { return p.ID }
func (o *Order) GetID() uint        { return o.ID }
func (d *OrderDetail) GetID() uint  { return d.ID }
func (p *Product) GetID() uint      { return p.ID }
func (b *ProductBrand) GetID() uint { return b.ID }

func (c *Customer) SetID(id uint)     { c.ID = id }
func (a *Address) SetID(id uint)      { a.ID = id }
func (p *Phone) SetID(id uint)        { p.ID = id }
func (o *Order) SetID(id uint)        { o.ID = id }
func (d *OrderDetail) SetID(id uint)  { d.ID = id }
func (p *Product) SetID(id uint)      { p.ID = id }
func (b *ProductBrand) SetID(id uint) { b.ID = id }
