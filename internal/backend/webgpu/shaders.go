//go:build windows

package webgpu

// WGSL compute shaders for the training kernels. Every shader runs
// workgroupSize invocations per workgroup over a flattened 2D grid and returns
// early past params.total.

// matmulShader computes y[b][o] = Σ_k a[o][k]·x[b][k], one invocation per y element.
const matmulShader = `
struct Params {
    total: u32,
    out_dim: u32,
    in_dim: u32,
}

@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> x: array<f32>;
@group(0) @binding(2) var<storage, read_write> y: array<f32>;
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let i = gid.x + gid.y * nwg.x * 256u;
    if (i >= params.total) {
        return;
    }
    let b = i / params.out_dim;
    let o = i % params.out_dim;
    var sum: f32 = 0.0;
    for (var k: u32 = 0u; k < params.in_dim; k = k + 1u) {
        sum = sum + a[o * params.in_dim + k] * x[b * params.in_dim + k];
    }
    y[i] = sum;
}
`

// matmulTransposedShader computes x[b][k] = Σ_o a[o][k]·y[b][o] reading a in place.
const matmulTransposedShader = `
struct Params {
    total: u32,
    out_dim: u32,
    in_dim: u32,
}

@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> y: array<f32>;
@group(0) @binding(2) var<storage, read_write> x: array<f32>;
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let i = gid.x + gid.y * nwg.x * 256u;
    if (i >= params.total) {
        return;
    }
    let b = i / params.in_dim;
    let k = i % params.in_dim;
    var sum: f32 = 0.0;
    for (var o: u32 = 0u; o < params.out_dim; o = o + 1u) {
        sum = sum + a[o * params.in_dim + k] * y[b * params.out_dim + o];
    }
    x[i] = sum;
}
`

// outerAccumulateShader adds Σ_b yg[b][o]·x[b][k] into g[o][k]. Each
// invocation owns one gradient element.
const outerAccumulateShader = `
struct Params {
    total: u32,
    batch: u32,
    out_dim: u32,
    in_dim: u32,
}

@group(0) @binding(0) var<storage, read> yg: array<f32>;
@group(0) @binding(1) var<storage, read> x: array<f32>;
@group(0) @binding(2) var<storage, read_write> g: array<f32>;
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let i = gid.x + gid.y * nwg.x * 256u;
    if (i >= params.total) {
        return;
    }
    let o = i / params.in_dim;
    let k = i % params.in_dim;
    var sum: f32 = 0.0;
    for (var b: u32 = 0u; b < params.batch; b = b + 1u) {
        sum = sum + yg[b * params.out_dim + o] * x[b * params.in_dim + k];
    }
    g[i] = g[i] + sum;
}
`

// reduceSumShader adds xᵀ·ones into dst, one invocation per column.
const reduceSumShader = `
struct Params {
    total: u32,
    batch: u32,
}

@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read> ones: array<f32>;
@group(0) @binding(2) var<storage, read_write> dst: array<f32>;
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let j = gid.x + gid.y * nwg.x * 256u;
    if (j >= params.total) {
        return;
    }
    var sum: f32 = 0.0;
    for (var b: u32 = 0u; b < params.batch; b = b + 1u) {
        sum = sum + x[b * params.total + j] * ones[b];
    }
    dst[j] = dst[j] + sum;
}
`

// addToShader computes dst += src.
const addToShader = `
struct Params {
    total: u32,
}

@group(0) @binding(0) var<storage, read> src: array<f32>;
@group(0) @binding(1) var<storage, read_write> dst: array<f32>;
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let i = gid.x + gid.y * nwg.x * 256u;
    if (i >= params.total) {
        return;
    }
    dst[i] = dst[i] + src[i];
}
`

// addBiasShader adds bias[j] to column j of every row.
const addBiasShader = `
struct Params {
    total: u32,
    n: u32,
}

@group(0) @binding(0) var<storage, read> bias: array<f32>;
@group(0) @binding(1) var<storage, read_write> y: array<f32>;
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let i = gid.x + gid.y * nwg.x * 256u;
    if (i >= params.total) {
        return;
    }
    y[i] = y[i] + bias[i % params.n];
}
`

// pairwiseMulShader computes out[b][j] = in[b][j]·in[b][j+n].
const pairwiseMulShader = `
struct Params {
    total: u32,
    n: u32,
}

@group(0) @binding(0) var<storage, read> src: array<f32>;
@group(0) @binding(1) var<storage, read_write> dst: array<f32>;
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let i = gid.x + gid.y * nwg.x * 256u;
    if (i >= params.total) {
        return;
    }
    let base = (i / params.n) * 2u * params.n + i % params.n;
    dst[i] = src[base] * src[base + params.n];
}
`

// pairwiseMulBackwardShader adds the product rule gradient into both halves.
const pairwiseMulBackwardShader = `
struct Params {
    total: u32,
    n: u32,
}

@group(0) @binding(0) var<storage, read> src: array<f32>;
@group(0) @binding(1) var<storage, read> grad: array<f32>;
@group(0) @binding(2) var<storage, read_write> src_grad: array<f32>;
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let i = gid.x + gid.y * nwg.x * 256u;
    if (i >= params.total) {
        return;
    }
    let base = (i / params.n) * 2u * params.n + i % params.n;
    let g = grad[i];
    src_grad[base] = src_grad[base] + g * src[base + params.n];
    src_grad[base + params.n] = src_grad[base + params.n] + g * src[base];
}
`

// sparseAffineShader computes out[b][s·n+j] = bias[j] + Σ w[f][j] over the
// active features f of stream s. Indices of stream s start at s·batch·max_active.
const sparseAffineShader = `
struct Params {
    total: u32,
    batch: u32,
    n: u32,
    max_active: u32,
    streams: u32,
}

@group(0) @binding(0) var<storage, read> w: array<f32>;
@group(0) @binding(1) var<storage, read> bias: array<f32>;
@group(0) @binding(2) var<storage, read> indices: array<i32>;
@group(0) @binding(3) var<storage, read_write> dst: array<f32>;
@group(0) @binding(4) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let i = gid.x + gid.y * nwg.x * 256u;
    if (i >= params.total) {
        return;
    }
    let width = params.streams * params.n;
    let b = i / width;
    let s = (i % width) / params.n;
    let j = i % params.n;
    let base = (s * params.batch + b) * params.max_active;
    var sum: f32 = bias[j];
    for (var k: u32 = 0u; k < params.max_active; k = k + 1u) {
        let f = indices[base + k];
        if (f < 0) {
            continue;
        }
        sum = sum + w[u32(f) * params.n + j];
    }
    dst[i] = sum;
}
`

// sparseAffineBackwardShader scatters e = err + ft_reg·out into the gradient
// rows of the active features. One invocation owns column j of w_grad and
// bias_grad across every sample and stream.
const sparseAffineBackwardShader = `
struct Params {
    total: u32,
    batch: u32,
    max_active: u32,
    streams: u32,
    ft_reg: f32,
}

@group(0) @binding(0) var<storage, read> indices: array<i32>;
@group(0) @binding(1) var<storage, read> errs: array<f32>;
@group(0) @binding(2) var<storage, read> fwd: array<f32>;
@group(0) @binding(3) var<storage, read_write> w_grad: array<f32>;
@group(0) @binding(4) var<storage, read_write> bias_grad: array<f32>;
@group(0) @binding(5) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let j = gid.x + gid.y * nwg.x * 256u;
    let n = params.total;
    if (j >= n) {
        return;
    }
    let width = params.streams * n;
    var bias_sum: f32 = 0.0;
    for (var s: u32 = 0u; s < params.streams; s = s + 1u) {
        for (var b: u32 = 0u; b < params.batch; b = b + 1u) {
            let o = b * width + s * n + j;
            let e = errs[o] + params.ft_reg * fwd[o];
            if (e == 0.0) {
                continue;
            }
            bias_sum = bias_sum + e;
            let base = (s * params.batch + b) * params.max_active;
            for (var k: u32 = 0u; k < params.max_active; k = k + 1u) {
                let f = indices[base + k];
                if (f < 0) {
                    continue;
                }
                let g = u32(f) * n + j;
                w_grad[g] = w_grad[g] + e;
            }
        }
    }
    bias_grad[j] = bias_grad[j] + bias_sum;
}
`

// activationFunctions holds the forward and derivative of every activation
// kind, numbered as tensor.Activation.
const activationFunctions = `
fn activate(kind: u32, x: f32, slope: f32) -> f32 {
    var r: f32;
    switch kind {
        case 0u: {
            r = max(x, 0.0);
        }
        case 1u: {
            r = clamp(x, 0.0, 1.0);
        }
        case 2u: {
            let c = clamp(x, 0.0, 1.0);
            r = c * c;
        }
        case 3u: {
            let c = max(x, 0.0);
            r = c * c;
        }
        default: {
            r = select(slope * x * x, x * x, x > 0.0);
        }
    }
    return r;
}

fn derivative(kind: u32, x: f32, slope: f32) -> f32 {
    var r: f32 = 0.0;
    switch kind {
        case 0u: {
            r = select(0.0, 1.0, x > 0.0);
        }
        case 1u: {
            r = select(0.0, 1.0, x > 0.0 && x < 1.0);
        }
        case 2u: {
            r = select(0.0, 2.0 * x, x > 0.0 && x < 1.0);
        }
        case 3u: {
            r = select(0.0, 2.0 * x, x > 0.0);
        }
        default: {
            r = select(2.0 * slope * x, 2.0 * x, x > 0.0);
        }
    }
    return r;
}
`

// activateShader computes y = f(x).
const activateShader = `
struct Params {
    total: u32,
    kind: u32,
    slope: f32,
}

@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read_write> y: array<f32>;
@group(0) @binding(2) var<uniform> params: Params;
` + activationFunctions + `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let i = gid.x + gid.y * nwg.x * 256u;
    if (i >= params.total) {
        return;
    }
    y[i] = activate(params.kind, x[i], params.slope);
}
`

// activateBackwardShader scales grad by f'(x).
const activateBackwardShader = `
struct Params {
    total: u32,
    kind: u32,
    slope: f32,
}

@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read_write> grad: array<f32>;
@group(0) @binding(2) var<uniform> params: Params;
` + activationFunctions + `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let i = gid.x + gid.y * nwg.x * 256u;
    if (i >= params.total) {
        return;
    }
    grad[i] = grad[i] * derivative(params.kind, x[i], params.slope);
}
`

// selectShader copies slice buckets[b] of the candidates into dst[b]. With
// shared set, every sample reads the single candidate row.
const selectShader = `
struct Params {
    total: u32,
    n: u32,
    width: u32,
    shared_row: u32,
}

@group(0) @binding(0) var<storage, read> src: array<f32>;
@group(0) @binding(1) var<storage, read> buckets: array<i32>;
@group(0) @binding(2) var<storage, read_write> dst: array<f32>;
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let i = gid.x + gid.y * nwg.x * 256u;
    if (i >= params.total) {
        return;
    }
    let b = i / params.n;
    let j = i % params.n;
    let row = select(b, 0u, params.shared_row == 1u);
    dst[i] = src[row * params.width + u32(buckets[b]) * params.n + j];
}
`

// selectBackwardShader adds grad[b] into the selected slice. In the shared case
// one invocation owns column j of every bucket and loops over the batch.
const selectBackwardShader = `
struct Params {
    total: u32,
    n: u32,
    width: u32,
    shared_row: u32,
    batch: u32,
}

@group(0) @binding(0) var<storage, read> grad: array<f32>;
@group(0) @binding(1) var<storage, read> buckets: array<i32>;
@group(0) @binding(2) var<storage, read_write> dst: array<f32>;
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let i = gid.x + gid.y * nwg.x * 256u;
    if (i >= params.total) {
        return;
    }
    if (params.shared_row == 1u) {
        for (var b: u32 = 0u; b < params.batch; b = b + 1u) {
            let o = u32(buckets[b]) * params.n + i;
            dst[o] = dst[o] + grad[b * params.n + i];
        }
        return;
    }
    let b = i / params.n;
    let o = b * params.width + u32(buckets[b]) * params.n + i % params.n;
    dst[o] = dst[o] + grad[i];
}
`

// sigmoidMPEShader writes |σ(pred)-target|^power and its gradient.
const sigmoidMPEShader = `
struct Params {
    total: u32,
    power: f32,
}

@group(0) @binding(0) var<storage, read> pred: array<f32>;
@group(0) @binding(1) var<storage, read> targets: array<f32>;
@group(0) @binding(2) var<storage, read_write> grad: array<f32>;
@group(0) @binding(3) var<storage, read_write> loss: array<f32>;
@group(0) @binding(4) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let i = gid.x + gid.y * nwg.x * 256u;
    if (i >= params.total) {
        return;
    }
    let s = 1.0 / (1.0 + exp(-pred[i]));
    let d = s - targets[i];
    let a = abs(d);
    if (a == 0.0) {
        loss[i] = 0.0;
        grad[i] = 0.0;
        return;
    }
    loss[i] = pow(a, params.power);
    grad[i] = sign(d) * params.power * pow(a, params.power - 1.0) * s * (1.0 - s);
}
`

// adamwShader applies the fused AdamW update with weight clipping.
const adamwShader = `
struct Params {
    total: u32,
    lr: f32,
    beta1: f32,
    beta2: f32,
    eps: f32,
    decay: f32,
    min_weight: f32,
    max_weight: f32,
    grad_scale: f32,
}

@group(0) @binding(0) var<storage, read> grads: array<f32>;
@group(0) @binding(1) var<storage, read_write> values: array<f32>;
@group(0) @binding(2) var<storage, read_write> momentum: array<f32>;
@group(0) @binding(3) var<storage, read_write> velocity: array<f32>;
@group(0) @binding(4) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let i = gid.x + gid.y * nwg.x * 256u;
    if (i >= params.total) {
        return;
    }
    let g = params.grad_scale * grads[i];
    let m = params.beta1 * momentum[i] + (1.0 - params.beta1) * g;
    let v = params.beta2 * velocity[i] + (1.0 - params.beta2) * g * g;
    momentum[i] = m;
    velocity[i] = v;
    let w = values[i] * (1.0 - params.decay * params.lr) - params.lr * m / (sqrt(v) + params.eps);
    values[i] = clamp(w, params.min_weight, params.max_weight);
}
`
