package islands

// RuntimeJS returns the client-side hydration runtime. Island components
// register themselves via window.__registerIsland(name, fn); each marker is
// hydrated according to its data-hydrate strategy.
func RuntimeJS() []byte {
	return []byte(runtimeJS)
}

const runtimeJS = `(function () {
  'use strict';

  const components = {};
  const pending = [];

  window.__registerIsland = function (name, component) {
    components[name] = component;
    for (let i = pending.length - 1; i >= 0; i--) {
      if (pending[i].dataset.island === name) {
        hydrate(pending.splice(i, 1)[0]);
      }
    }
  };

  function hydrate(el) {
    if (el.dataset.hydrated) return;
    const name = el.dataset.island;
    const component = components[name];
    if (!component) {
      pending.push(el);
      return;
    }
    let props = {};
    if (el.dataset.props) {
      try {
        props = JSON.parse(el.dataset.props.replace(/&quot;/g, '"'));
      } catch (err) {
        console.warn('[islands] bad props for', name, err);
      }
    }
    try {
      component(el, props);
      el.dataset.hydrated = 'true';
    } catch (err) {
      console.error('[islands] hydration failed for', name, err);
    }
  }

  function schedule(el) {
    const strategy = el.dataset.hydrate || 'idle';
    switch (strategy) {
      case 'load':
        hydrate(el);
        break;
      case 'idle':
        if ('requestIdleCallback' in window) {
          requestIdleCallback(() => hydrate(el));
        } else {
          setTimeout(() => hydrate(el), 1);
        }
        break;
      case 'visible': {
        const io = new IntersectionObserver((entries) => {
          for (const entry of entries) {
            if (entry.isIntersecting) {
              io.disconnect();
              hydrate(el);
            }
          }
        });
        io.observe(el);
        break;
      }
      case 'media': {
        const query = el.dataset.media;
        if (!query) {
          hydrate(el);
          break;
        }
        const mq = matchMedia(query);
        if (mq.matches) {
          hydrate(el);
        } else {
          mq.addEventListener('change', function onChange(e) {
            if (e.matches) {
              mq.removeEventListener('change', onChange);
              hydrate(el);
            }
          });
        }
        break;
      }
      case 'interaction': {
        const events = ['click', 'focusin', 'pointerover', 'touchstart'];
        const onInteract = () => {
          for (const ev of events) el.removeEventListener(ev, onInteract);
          hydrate(el);
        };
        for (const ev of events) {
          el.addEventListener(ev, onInteract, { once: false, passive: true });
        }
        break;
      }
      default:
        hydrate(el);
    }
  }

  function init() {
    document
      .querySelectorAll('[data-island]:not([data-hydrated])')
      .forEach(schedule);
  }

  if (document.readyState === 'loading') {
    document.addEventListener('DOMContentLoaded', init);
  } else {
    init();
  }
})();
`
